// Package format describes the pixel formats known to glvk and the data
// tables that map a client-visible (intended) format onto the format the
// GPU actually stores (actual format).
//
// The package is pure data plus small matching functions:
//
//   - [Info] describes the memory layout of one format, channel by channel.
//   - [Table] resolves an intended format to an ordered list of storage
//     candidates and picks the first one the device supports.
//   - [Fallback] carries the channel mapping between the intended and the
//     actual format, including the emulated channels the client never sees.
//   - [Converter] moves texel rows between any two formats on the CPU.
//   - [TransferCompatible] is the copy-with-transfer eligibility policy for
//     cross-texture copies.
//
// Nothing in this package talks to a device. Device capabilities enter
// through the [Support] interface.
package format
