// Package sdmeta recovers Stable Diffusion generation parameters from the
// decoded text metadata of an image.
//
// Several layouts exist in the wild. Parse tries each entry of Dialects in
// order and keeps the first record with a non-empty positive prompt:
//
//   - standard: a "parameters" keyword holding the prompt block
//   - loose: description/comment style keywords holding the same block
//   - structured: JSON documents with prompt/negative_prompt/steps... fields
//   - freeform: any value containing "Negative prompt:"
//   - combined: all values joined, then freeform again
//
// A prompt block looks like:
//
//	a cat, (tree:1.1)
//	Negative prompt: blurry
//	Steps: 20, Sampler: Euler a, CFG scale: 7, Seed: 42, Size: 512x512, Model: foo
//
// Attention weights are stripped from both prompts by NormalizeWeights.
package sdmeta
