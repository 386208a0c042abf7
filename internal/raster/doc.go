// Package raster converts paginated documents into page images.
//
// A Rasterizer asks a Backend for the page count, renders pages in parallel
// with a bounded worker pool, fits every bitmap into the RenderSpec box and
// writes it as page-NNNN.png. Page files are named so that plain string order
// equals page order; the packaging stage relies on that order rather than on
// embedded page numbers.
package raster
