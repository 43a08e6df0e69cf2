// Package merge concatenates the page trees of several documents.
//
// # Usage
//
//	out, err := merge.Files([][]byte{a, b})
//	var merr *pdferr.MergeError
//	if errors.As(err, &merr) && merr.Source >= 0 {
//	    // input merr.Source could not be used
//	}
//
// # Copying
//
// Each page is materialized first: inherited /Resources, /MediaBox,
// /CropBox and /Rotate are copied onto it, so the page renders the same
// under its new parent. The page and everything reachable from it, except
// its /Parent link, is then copied into the target with fresh object
// numbers. The rewrite table that maps source references to target
// references is scoped to one source, so an object shared by two pages of
// the same input is copied once, while equal object numbers in different
// inputs never collide.
//
// The result's version is the highest of the inputs.
package merge
