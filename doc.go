/*
go-handtrack locates and follows hands in a stream of depth camera frames.

Each frame is downsampled and split into foreground blobs which are matched
against the persistent set of tracked points.  New points are created from
unclaimed blobs, points that can no longer be found are aged out and the
survivors are refined at the sensor's full resolution.  Results are published
on a hand stream as fixed capacity HandFrames, and a debug stream renders the
intermediate layers as an RGB image.

The pipeline is split over the sub packages:

	preprocess    depth downsample, foreground band and velocity
	segmentation  foreground scanning and hand region growing
	tracker       the tracked point state machine and velocity filter
	mapping       depth pixel to world coordinate conversion
	render        debug views

See example code and usage in the example subdirectory.
*/
package handtrack
