// Package ir provides the closed value representation used wherever reactive
// node values leave Go code: scenario files, trace records, golden files and
// the run store.
//
// ir imports nothing internal; every other internal package may import it.
//
// Key design constraints:
//   - Values are one of IRNull, IRString, IRInt, IRFloat, IRBool, IRArray, IRObject
//   - Numbers compare by value across int and float (Equal)
//   - MarshalCanonical is the only serialization fed to digests
package ir
