package protocol

// Bench commands, host to device. Each payload starts with the VLQ
// command id; arguments follow in the order documented here.
const (
	// CmdIdentify requests the device identity.
	// No arguments. Response: RspIdentify.
	CmdIdentify uint16 = 1

	// CmdBeginLoad starts a pulse train upload.
	// Args: width (bytes per sample: 1, 2 or 4), total sample count.
	// Stops playback and discards any previously loaded train.
	CmdBeginLoad uint16 = 2

	// CmdLoadChunk carries one slice of the pulse train.
	// Args: sample offset, length-prefixed little-endian sample bytes.
	CmdLoadChunk uint16 = 3

	// CmdSetRate sets the playback rate in samples per second.
	// Args: rate.
	CmdSetRate uint16 = 4

	// CmdStart begins cyclic playback of the loaded train.
	CmdStart uint16 = 5

	// CmdStop halts playback; the output port holds its last word.
	CmdStop uint16 = 6

	// CmdStatus requests the device status. Response: RspStatus.
	CmdStatus uint16 = 7
)

// Responses, device to host.
const (
	// RspIdentify: version string, train length, max sample width.
	RspIdentify uint16 = 0x40

	// RspStatus: running flag (0/1), rate, loaded sample count,
	// CRC16 of the loaded sample bytes.
	RspStatus uint16 = 0x41

	// RspError: error code, detail string.
	RspError uint16 = 0x42
)

// RspError codes.
const (
	ErrCodeBadCommand uint32 = 1 // unknown command id
	ErrCodeBadArgs    uint32 = 2 // malformed or out-of-range arguments
	ErrCodeNotLoaded  uint32 = 3 // start requested before a full train was loaded
)

// ChunkBytesMax is the largest sample payload of one CmdLoadChunk frame
// that still fits FrameLengthMax with the command id, offset and length
// prefix around it.
const ChunkBytesMax = 48
