// Package ipc speaks the runtime diagnostic IPC protocol over the
// per-process Unix domain socket.
package ipc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"unicode/utf16"

	"tracetap/internal/domain"
)

const (
	headerSize = 20

	commandSetEventPipe = 0x02
	commandSetServer    = 0xFF

	eventPipeStopTracing     = 0x01
	eventPipeCollectTracing2 = 0x03

	serverResponseOK    = 0x00
	serverResponseError = 0xFF

	formatNetTrace = 1
)

var magic = [14]byte{'D', 'O', 'T', 'N', 'E', 'T', '_', 'I', 'P', 'C', '_', 'V', '1', 0}

// Error codes the runtime reports on a failed session request.
const (
	hresultProfilerAlreadyActive uint32 = 0x8013136A
	hresultBadEncoding           uint32 = 0x80131384
	hresultUnknownCommand        uint32 = 0x80131385
	hresultUnknownMagic          uint32 = 0x80131386
	hresultUnknownError          uint32 = 0x80131387
	hresultNotSupported          uint32 = 0x80131515
)

var errBadMagic = errors.New("unexpected ipc magic")

type header struct {
	size       uint16
	commandSet uint8
	commandID  uint8
}

func writeMessage(w io.Writer, commandSet, commandID uint8, payload []byte) error {
	total := headerSize + len(payload)
	if total > 0xFFFF {
		return fmt.Errorf("ipc message too large: %d bytes", total)
	}
	buf := make([]byte, 0, total)
	buf = append(buf, magic[:]...)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(total))
	buf = append(buf, commandSet, commandID)
	buf = binary.LittleEndian.AppendUint16(buf, 0)
	buf = append(buf, payload...)
	_, err := w.Write(buf)
	return err
}

func readHeader(r io.Reader) (header, error) {
	var raw [headerSize]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return header{}, fmt.Errorf("read ipc header: %w", err)
	}
	if !bytes.Equal(raw[:len(magic)], magic[:]) {
		return header{}, errBadMagic
	}
	h := header{
		size:       binary.LittleEndian.Uint16(raw[14:16]),
		commandSet: raw[16],
		commandID:  raw[17],
	}
	if h.size < headerSize {
		return header{}, fmt.Errorf("ipc header size %d below minimum", h.size)
	}
	return h, nil
}

// appendString writes a length-prefixed, NUL-terminated UTF-16LE string.
// The empty string is encoded as a bare zero length.
func appendString(buf []byte, s string) []byte {
	if s == "" {
		return binary.LittleEndian.AppendUint32(buf, 0)
	}
	units := utf16.Encode([]rune(s))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(units)+1))
	for _, u := range units {
		buf = binary.LittleEndian.AppendUint16(buf, u)
	}
	return binary.LittleEndian.AppendUint16(buf, 0)
}

func encodeCollectTracing(bufferMB uint32, requestRundown bool, specs []domain.ProviderSpec) []byte {
	buf := make([]byte, 0, 64)
	buf = binary.LittleEndian.AppendUint32(buf, bufferMB)
	buf = binary.LittleEndian.AppendUint32(buf, formatNetTrace)
	if requestRundown {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(specs)))
	for _, spec := range specs {
		buf = binary.LittleEndian.AppendUint64(buf, spec.Keywords)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(spec.Level))
		buf = appendString(buf, spec.Name)
		buf = appendString(buf, spec.FilterData())
	}
	return buf
}

func encodeStopTracing(sessionID uint64) []byte {
	return binary.LittleEndian.AppendUint64(nil, sessionID)
}

// readResponse consumes a server response. On success it returns the
// uint64 that follows the header; on an error response it maps the
// runtime's code to a domain error.
func readResponse(r io.Reader, op string) (uint64, error) {
	h, err := readHeader(r)
	if err != nil {
		return 0, domain.Wrap(domain.CodeUnavailable, op, err)
	}
	if h.commandSet != commandSetServer {
		return 0, domain.E(domain.CodeInternal, op, fmt.Sprintf("unexpected command set 0x%02x", h.commandSet), nil)
	}
	body := make([]byte, int(h.size)-headerSize)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, domain.Wrap(domain.CodeUnavailable, op, fmt.Errorf("read ipc payload: %w", err))
	}

	switch h.commandID {
	case serverResponseOK:
		if len(body) < 8 {
			return 0, nil
		}
		return binary.LittleEndian.Uint64(body), nil
	case serverResponseError:
		if len(body) < 4 {
			return 0, domain.E(domain.CodeInternal, op, "truncated error response", nil)
		}
		return 0, hresultError(op, binary.LittleEndian.Uint32(body))
	default:
		return 0, domain.E(domain.CodeInternal, op, fmt.Sprintf("unexpected response id 0x%02x", h.commandID), nil)
	}
}

func hresultError(op string, code uint32) error {
	msg := fmt.Sprintf("runtime returned 0x%08X", code)
	switch code {
	case hresultProfilerAlreadyActive:
		return domain.E(domain.CodeFailedPrecond, op, msg, domain.ErrAlreadyTraced)
	case hresultNotSupported:
		return domain.E(domain.CodeFailedPrecond, op, msg, errors.New("command not supported by runtime"))
	case hresultBadEncoding, hresultUnknownCommand, hresultUnknownMagic:
		return domain.E(domain.CodeInternal, op, msg, errors.New("runtime rejected request encoding"))
	case hresultUnknownError:
		return domain.E(domain.CodeInternal, op, msg, errors.New("runtime reported an unknown error"))
	default:
		return domain.E(domain.CodeInternal, op, msg, nil)
	}
}
