// Package manifest defines the driver manifest model and loads it from JSON,
// YAML or sandboxed Lua documents.
//
// A manifest is an ordered list of driver entries. Document order is
// processing order; nothing in this package sorts or deduplicates entries.
//
// # Formats
//
// The format is picked by extension: .json (the default), .yaml/.yml and
// .lua. JSON and YAML documents hold a "drivers" list or a bare list. Lua
// manifests run in a sandbox with a read-only platform table and set a
// global drivers table:
//
//	drivers = {
//	  { name = "Chipset", url = "https://vendor.example/chipset.exe",
//	    fileName = "chipset.exe", type = "exe" },
//	  platform.when(platform.is_linux,
//	    { name = "NIC", url = "https://vendor.example/nic.deb",
//	      fileName = "nic.deb", type = "deb" }),
//	}
//
// # Validation
//
// Validate rejects unknown install types, unsafe or duplicate fileNames,
// fileNames that clash with partial-download or signature files, non-http
// URLs and malformed SHA-256 digests. Errors are *ValidationError or
// *ParseError; FormatError renders either for the console.
package manifest
