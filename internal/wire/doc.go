// Package wire owns the TSPS OSC vocabulary.
//
// Ownership boundary:
// - address normalization (leading/trailing slash tolerant)
//
// - decoded message shape handed between receiver and registry
//
// - fixed-schema person argument parsing and encoding
//
// Person argument schema, by index:
//
//	0 id  1 origin_id  2 age
//	3 centroid.x  4 centroid.y
//	5 velocity.x  6 velocity.y
//	7 box.x  8 box.y  9 box.w  10 box.h
//	11 flow.x  12 flow.y
//
// Arguments past index 12 are reserved for contour points and are ignored.
package wire
