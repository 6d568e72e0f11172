// Package pipeline runs one treespace batch: it validates the configuration
// and orthogroup table, splits species sequence files into per-family files,
// aligns every multi-member family and infers a tree from each alignment.
//
// The orchestrator moves through Init, Split, Align, InferTrees and Done.
// Nothing is written to the output directory until Init has succeeded, and
// each stage finishes completely before the next one starts.
package pipeline
