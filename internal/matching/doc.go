// Package matching resolves catalog listings to streaming service track ids.
//
// The pipeline is pure except for [Strategy], which issues queries through a [Searcher]:
//
//   - [Normalize] strips featuring credits and mix annotations from a name
//   - [GenerateVariants] rewrites a [models.SourceTrack] into an ordered list of search variants
//   - [ArtistVariants] derives alternative spellings of the artist list
//   - [Scorer] compares a track with search candidates
//   - [Selector] accepts or rejects a search response
//   - [Strategy] walks artists × variants × query shapes until the selector accepts
//
// Nothing in this package mutates its inputs. Variants are clones.
package matching
