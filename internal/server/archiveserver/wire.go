package archiveserver

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strconv"
)

// MaxLineLen limits a single command line.
const MaxLineLen = 4 * 1024

var (
	ErrProtocol      = errors.New("arclink: protocol error")
	ErrLimitExceeded = errors.New("arclink: limit exceeded")
)

// readLine reads one CRLF terminated line without its terminator.
func readLine(r *bufio.Reader, maxLen int) (string, error) {
	if maxLen <= 0 {
		return "", fmt.Errorf("%w: invalid maxLen", ErrProtocol)
	}

	var buf []byte
	for {
		frag, err := r.ReadSlice('\n')
		if err == nil {
			buf = append(buf, frag...)
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			buf = append(buf, frag...)
			if len(buf) > maxLen {
				return "", fmt.Errorf("%w: line length exceeds limit %d", ErrLimitExceeded, maxLen)
			}
			continue
		}
		return "", err
	}

	if len(buf) > maxLen {
		return "", fmt.Errorf("%w: line length exceeds limit %d", ErrLimitExceeded, maxLen)
	}
	if len(buf) < 2 || !bytes.HasSuffix(buf, []byte("\r\n")) {
		return "", fmt.Errorf("%w: missing CRLF", ErrProtocol)
	}
	return string(bytes.TrimSuffix(buf, []byte("\r\n"))), nil
}

func writeLine(w *bufio.Writer, s string) error {
	_, err := w.WriteString(s + "\r\n")
	return err
}

// writeDocument writes a status document followed by its END sentinel.
func writeDocument(w *bufio.Writer, doc string) error {
	_, err := w.WriteString(doc + "END\r\n")
	return err
}

// writeFrame writes "<length>\r\n<data><trailer>\r\n".
func writeFrame(w *bufio.Writer, length int, data []byte, trailer string) error {
	if err := writeLine(w, strconv.Itoa(length)); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	return writeLine(w, trailer)
}
