// Package params holds the runtime Params record threaded explicitly
// through providers and the target's STF boundary, replacing the source's
// compile-time parameterization over two constant profiles (spec §9
// "Polymorphism & variants").
package params

import "fmt"

// Params bundles the protocol constants that vary between build profiles
// (spec §6 "Parameter sets").
type Params struct {
	Name             string
	ValidatorCount   uint32
	CoreCount        uint32
	EpochLength      uint32
	RotationPeriod   uint32
	SegmentSize      uint32
	MaxKeyvalEntries uint32 // soft cap on Initialize.keyvals size for this profile
	MaxBlockBytes    uint32 // soft cap on encoded block size for this profile
}

// Tiny is the development-scale profile (spec §6).
var Tiny = Params{
	Name:             "tiny",
	ValidatorCount:   6,
	CoreCount:        2,
	EpochLength:      12,
	RotationPeriod:   4,
	SegmentSize:      4096,
	MaxKeyvalEntries: 4096,
	MaxBlockBytes:    1 << 16,
}

// Full is the production-scale profile (spec §6).
var Full = Params{
	Name:             "full",
	ValidatorCount:   1023,
	CoreCount:        341,
	EpochLength:      600,
	RotationPeriod:   10,
	SegmentSize:      4096,
	MaxKeyvalEntries: 1 << 20,
	MaxBlockBytes:    1 << 22,
}

// ByName resolves a profile by the names used on the CLI and in reports
// ("tiny", "full").
func ByName(name string) (Params, error) {
	switch name {
	case "tiny":
		return Tiny, nil
	case "full":
		return Full, nil
	default:
		return Params{}, fmt.Errorf("params: unknown profile %q", name)
	}
}
