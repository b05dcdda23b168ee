package isp

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/okmcu/fsisp/packet"
)

// Attribute registers.
const (
	RegPartNumber        uint8 = 0x00
	RegUUID              uint8 = 0x01
	RegBootloaderVersion uint8 = 0x02
	RegBootloaderAddr    uint8 = 0x03
	RegBootloaderSize    uint8 = 0x04
)

const (
	versionSize = 4
	uint32Size  = 4
)

// RegisterName returns a human readable name of an attribute register.
func RegisterName(reg uint8) string {
	switch reg {
	case RegPartNumber:
		return "part number"
	case RegUUID:
		return "uuid"
	case RegBootloaderVersion:
		return "bootloader version"
	case RegBootloaderAddr:
		return "bootloader address"
	case RegBootloaderSize:
		return "bootloader size"
	default:
		return fmt.Sprintf("register 0x%02X", reg)
	}
}

// MCUInfo identifies the microcontroller.
type MCUInfo struct {
	// PartNumber holds the raw register bytes, at most 128.
	PartNumber []byte
	// UUID holds the raw register bytes, at most 128.
	UUID []byte
}

// PartNumberString returns the part number up to the first NUL byte.
func (m MCUInfo) PartNumberString() string {
	return cString(m.PartNumber)
}

// UUIDString returns the UUID up to the first NUL byte.
func (m MCUInfo) UUIDString() string {
	return cString(m.UUID)
}

// BootloaderInfo describes the resident bootloader.
type BootloaderInfo struct {
	Major uint8
	Minor uint8
	Build uint16
	// FlashAddr is the flash address the bootloader is located at.
	FlashAddr uint32
	// Size is the flash size in bytes occupied by the bootloader.
	Size uint32
}

// Version returns the version as "vMAJOR.MINOR.BUILD".
func (b BootloaderInfo) Version() string {
	return fmt.Sprintf("v%d.%d.%d", b.Major, b.Minor, b.Build)
}

// DeviceAttributes is the record read by Client.ReadAttributes.
type DeviceAttributes struct {
	MCU        MCUInfo
	Bootloader BootloaderInfo
}

// attrRegister is one step of the attribute read sequence.
type attrRegister struct {
	reg    uint8
	size   int
	decode func(attr *DeviceAttributes, b []byte) error
}

// attrRegisters lists the attribute registers in read order.
var attrRegisters = []attrRegister{
	{
		reg:  RegPartNumber,
		size: packet.MaxPayloadSize,
		decode: func(attr *DeviceAttributes, b []byte) error {
			attr.MCU.PartNumber = bytes.Clone(b)
			return nil
		},
	},
	{
		reg:  RegUUID,
		size: packet.MaxPayloadSize,
		decode: func(attr *DeviceAttributes, b []byte) error {
			attr.MCU.UUID = bytes.Clone(b)
			return nil
		},
	},
	{
		reg:  RegBootloaderVersion,
		size: versionSize,
		decode: func(attr *DeviceAttributes, b []byte) error {
			if len(b) < versionSize {
				return fmt.Errorf("%w: got %d bytes, want %d", ErrShortRegister, len(b), versionSize)
			}
			attr.Bootloader.Major = b[0]
			attr.Bootloader.Minor = b[1]
			attr.Bootloader.Build = binary.LittleEndian.Uint16(b[2:4])

			return nil
		},
	},
	{
		reg:  RegBootloaderAddr,
		size: uint32Size,
		decode: func(attr *DeviceAttributes, b []byte) (err error) {
			attr.Bootloader.FlashAddr, err = decodeUint32(b)
			return err
		},
	},
	{
		reg:  RegBootloaderSize,
		size: uint32Size,
		decode: func(attr *DeviceAttributes, b []byte) (err error) {
			attr.Bootloader.Size, err = decodeUint32(b)
			return err
		},
	},
}

// decodeUint32 decodes a 4-byte numeric register, byte 3 most significant.
func decodeUint32(b []byte) (uint32, error) {
	if len(b) < uint32Size {
		return 0, fmt.Errorf("%w: got %d bytes, want %d", ErrShortRegister, len(b), uint32Size)
	}

	return binary.LittleEndian.Uint32(b), nil
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}

	return string(b)
}
