package util

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"strings"

	"github.com/bmeg/grip/log"
)

func openMaybeGzip(file string) (io.ReadCloser, io.Closer, error) {
	fh, err := os.Open(file)
	if err != nil {
		return nil, nil, err
	}
	if !strings.HasSuffix(file, ".gz") {
		return fh, fh, nil
	}
	gz, err := gzip.NewReader(fh)
	if err != nil {
		fh.Close()
		return nil, nil, err
	}
	return gz, fh, nil
}

// LineCounter counts the newlines of a file, decompressing .gz files.
func LineCounter(file string) (int, error) {
	r, fh, err := openMaybeGzip(file)
	if err != nil {
		return 0, err
	}
	defer fh.Close()

	buf := make([]byte, 32*1024)
	count := 0
	lineSep := []byte{'\n'}

	for {
		c, err := r.Read(buf)
		count += bytes.Count(buf[:c], lineSep)

		switch {
		case err == io.EOF:
			return count, nil

		case err != nil:
			return count, err
		}
	}
}

// StreamLines returns a channel of lines from a file.
func StreamLines(file string, chanSize int) (chan string, error) {
	r, fh, err := openMaybeGzip(file)
	if err != nil {
		return nil, err
	}
	scanner := bufio.NewScanner(r)

	const maxCapacity = 16 * 1024 * 1024
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, maxCapacity)

	lineChan := make(chan string, chanSize)

	go func() {
		for scanner.Scan() {
			line := scanner.Text()
			lineChan <- line
		}
		if err := scanner.Err(); err != nil {
			log.Errorf("Error reading %s: %s", file, err)
		}
		close(lineChan)
		fh.Close()
	}()

	return lineChan, nil
}
