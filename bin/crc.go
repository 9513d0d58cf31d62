package bin

import "hash/crc32"

// The WAL and SSTable checksums use the reflected 0xEDB88320 polynomial with
// initial value 0xFFFFFFFF and a final XOR of 0xFFFFFFFF, which is exactly
// the stdlib IEEE table.
var crcTable = crc32.MakeTable(crc32.IEEE)

// Checksum computes the CRC32 of data. The checksum of empty input is 0.
func Checksum(data []byte) uint32 {
	return crc32.Checksum(data, crcTable)
}

// ChecksumUpdate extends crc with data, so that checksums over concatenated
// segments can be computed without joining them.
func ChecksumUpdate(crc uint32, data []byte) uint32 {
	return crc32.Update(crc, crcTable, data)
}
