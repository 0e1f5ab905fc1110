// Package anneal searches for a low cost slot assignment with simulated
// annealing.
//
// A run seeds a schedule greedily from group preferences, repairs slots that
// fall below the occupancy floor, then walks a single Markov chain of move
// and swap proposals under a geometric cooling schedule. Every committed
// proposal keeps each slot within [125,300] people. All randomness comes
// from one stream seeded by Params.Seed, so identical inputs reproduce the
// same result.
package anneal
