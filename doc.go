// Package fitsview renders FITS data cubes as interactive volumes on the
// GPU.
//
// # Overview
//
// A cube is read from disk (optionally gzip-compressed), decoded into
// float32 samples and uploaded as a 3D texture. Each frame a full-screen
// quad is ray-marched through the volume using a set of shared uniform
// groups (rotation, viewport, time, camera, cuts, perspective, minmax).
// A second pass draws a selector ring, and a small panel shows the cube's
// metadata and a few buttons.
//
// # Quick Start
//
//	cfg := fitsview.DefaultConfig()
//	v, err := fitsview.NewViewer(device, queue, cfg)
//	if err != nil {
//	    return err
//	}
//	defer v.Close()
//
//	if err := v.LoadCube("NGC3198_cube.fits.gz"); err != nil {
//	    return err
//	}
//
//	// Once per frame, on the event loop goroutine:
//	v.Tick(time.Since(start))
//	err = v.RenderFrame(surface)
//
// # Input
//
// Pointer and key events go through [Viewer.HandleEvent]. A left-drag
// rotates the camera, a right-drag rescales the intensity window. Keys map
// to actions the shell performs: toggle fullscreen and quit. Loading the
// next dataset is handled by the viewer itself.
//
// # Parameter Injection
//
// Other goroutines change the view through [Viewer.Inbox]. Queued values
// are coalesced and applied at the start of the next [Viewer.Tick]:
// perspective first, then the intensity range, then a new dataset.
//
// # Intensity Window
//
// Every cube gets a percentile window (5th to 95th by default) computed
// over all its samples while decoding. That window becomes the initial
// cuts. The declared DATAMIN/DATAMAX, or a catalog override, is kept as
// the fallback range the shader uses when the cuts collapse.
//
// # Logging
//
// fitsview is silent by default. See [SetLogger].
package fitsview
