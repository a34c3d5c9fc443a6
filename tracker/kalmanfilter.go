package tracker

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

const (
	// stateDim is the size of the state vector, x,y,z position followed by
	// x,y,z velocity
	stateDim = 6
	// measureDim is the size of a measurement, an x,y,z world position
	measureDim = 3
)

// Measurement represents a 1x3 world position using a slice of float32
type Measurement []float32

// StateMean represents a 1x6 matrix using a slice of float32
type StateMean []float32

// StateCov represents a 6x6 matrix
type StateCov struct {
	*mat.Dense
}

// StateHMean represents a 1x3 matrix using a slice of float32
type StateHMean []float32

// StateHCov represents a 3x3 matrix
type StateHCov struct {
	*mat.SymDense
}

// KalmanFilter is a constant velocity filter over a 3D world position, it
// smooths the per frame movement of a refined hand position
type KalmanFilter struct {
	stdPosition    float32
	stdVelocity    float32
	stdMeasurement float32
	motionMat      *mat.Dense
	updateMat      *mat.Dense
}

// NewKalmanFilter initializes and returns a new KalmanFilter.  The standard
// deviations are in mm for position and measurement and mm per frame for
// velocity.
func NewKalmanFilter(stdPosition, stdVelocity, stdMeasurement float32) *KalmanFilter {

	dt := float32(1.0)

	// create identity matrix for motionMat
	motionMat := mat.NewDense(stateDim, stateDim, nil)

	for i := 0; i < stateDim; i++ {
		motionMat.Set(i, i, float64(1.0))
	}

	for i := 0; i < measureDim; i++ {
		motionMat.Set(i, measureDim+i, float64(dt))
	}

	// create updateMat as a 3x6 matrix selecting the position states
	updateMat := mat.NewDense(measureDim, stateDim, nil)

	for i := 0; i < measureDim; i++ {
		updateMat.Set(i, i, float64(1.0))
	}

	return &KalmanFilter{
		stdPosition:    stdPosition,
		stdVelocity:    stdVelocity,
		stdMeasurement: stdMeasurement,
		motionMat:      motionMat,
		updateMat:      updateMat,
	}
}

// NewState allocates an empty state mean and covariance
func NewState() (StateMean, *StateCov) {
	return make(StateMean, stateDim), &StateCov{mat.NewDense(stateDim, stateDim, nil)}
}

// Initiate initializes the state mean and covariance from a first measurement
func (kf *KalmanFilter) Initiate(mean StateMean, covariance *StateCov,
	measurement Measurement) {

	// position comes from the measurement, velocity is unknown
	copy(mean[:measureDim], measurement[:measureDim])

	for i := measureDim; i < stateDim; i++ {
		mean[i] = 0.0
	}

	covariance.Zero()

	for i := 0; i < measureDim; i++ {
		std := 2 * kf.stdMeasurement
		covariance.Set(i, i, float64(std*std))

		std = 10 * kf.stdVelocity
		covariance.Set(measureDim+i, measureDim+i, float64(std*std))
	}
}

// Predict predicts the next state mean and covariance
func (kf *KalmanFilter) Predict(mean StateMean, covariance *StateCov) {

	// create the motion covariance matrix with variances on the diagonal
	motionCov := mat.NewDense(stateDim, stateDim, nil)

	for i := 0; i < measureDim; i++ {
		motionCov.Set(i, i, float64(kf.stdPosition*kf.stdPosition))
		motionCov.Set(measureDim+i, measureDim+i, float64(kf.stdVelocity*kf.stdVelocity))
	}

	// convert the mean state vector for multiplication
	meanVec := mat.NewVecDense(stateDim, nil)

	for i := 0; i < stateDim; i++ {
		meanVec.SetVec(i, float64(mean[i]))
	}

	// predict the next state mean using the motion model
	next := mat.NewVecDense(stateDim, nil)
	next.MulVec(kf.motionMat, meanVec)

	for i := 0; i < stateDim; i++ {
		mean[i] = float32(next.AtVec(i))
	}

	// predict the next state covariance using the motion model
	cov := mat.NewDense(stateDim, stateDim, nil)
	cov.Mul(kf.motionMat, covariance.Dense)
	cov.Mul(cov, kf.motionMat.T())
	cov.Add(cov, motionCov)

	covariance.Dense = cov
}

// Update corrects the state mean and covariance with a measurement
func (kf *KalmanFilter) Update(mean StateMean, covariance *StateCov,
	measurement Measurement) error {

	// project the state mean and covariance to measurement space
	projectedMean, projectedCov := kf.project(mean, covariance)

	// perform Cholesky factorization of the projected covariance matrix
	chol := mat.Cholesky{}

	if ok := chol.Factorize(projectedCov); !ok {
		return errors.New("failed to factorize projected covariance")
	}

	// compute the matrix B for Kalman gain calculation
	B := mat.NewDense(stateDim, measureDim, nil)
	B.Mul(covariance.Dense, kf.updateMat.T())

	// compute the Kalman gain using the Cholesky factorization
	var kalmanGain mat.Dense
	err := chol.SolveTo(&kalmanGain, B.T())

	if err != nil {
		return fmt.Errorf("failed to compute kalman gain: %w", err)
	}

	// compute the innovation (measurement residual)
	innovation := make([]float64, measureDim)

	for i := 0; i < measureDim; i++ {
		innovation[i] = float64(measurement[i] - projectedMean[i])
	}

	// update the state mean with the innovation
	innovationVec := mat.NewVecDense(measureDim, innovation)
	tmp := mat.NewVecDense(stateDim, nil)
	tmp.MulVec(kalmanGain.T(), innovationVec)

	for i := 0; i < stateDim; i++ {
		mean[i] += float32(tmp.AtVec(i))
	}

	// update the state covariance
	temp := mat.NewDense(stateDim, measureDim, nil)
	temp.Mul(kalmanGain.T(), projectedCov)

	temp2 := mat.NewDense(stateDim, stateDim, nil)
	temp2.Mul(temp, &kalmanGain)

	newCov := mat.NewDense(stateDim, stateDim, nil)
	newCov.Sub(covariance.Dense, temp2)

	covariance.Dense = newCov

	return nil
}

// project projects the state mean and covariance to measurement space
func (kf *KalmanFilter) project(mean StateMean,
	covariance *StateCov) (StateHMean, *StateHCov) {

	// create the innovation covariance matrix (measurement noise covariance)
	innovationCov := mat.NewSymDense(measureDim, nil)

	for i := 0; i < measureDim; i++ {
		innovationCov.SetSym(i, i, float64(kf.stdMeasurement*kf.stdMeasurement))
	}

	// project the state covariance to measurement space
	projectedCov := mat.NewSymDense(measureDim, nil)
	temp := mat.NewDense(measureDim, stateDim, nil)
	temp.Mul(kf.updateMat, covariance.Dense)
	temp2 := mat.NewDense(measureDim, measureDim, nil)
	temp2.Mul(temp, kf.updateMat.T())

	for i := 0; i < measureDim; i++ {
		for j := i; j < measureDim; j++ {
			projectedCov.SetSym(i, j, temp2.At(i, j))
		}
	}

	// add the innovation covariance to the projected covariance
	projectedCov.AddSym(projectedCov, innovationCov)

	// the update matrix selects the position states
	projectedMean := make(StateHMean, measureDim)
	copy(projectedMean, mean[:measureDim])

	return projectedMean, &StateHCov{projectedCov}
}
