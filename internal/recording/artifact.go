package recording

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/youpy/go-wav"

	"github.com/jonathan/meeting-analyzer/internal/types"
)

// riffHeaderSize covers "RIFF", the file size and "WAVE".
const riffHeaderSize = 12

// InspectArtifact reads the WAV layout at path and returns the artifact description.
// Missing files, header-only files and zero-length audio are RecordingEmptyErrors.
//
// Audio is measured from the start of the data chunk to the end of the file. The
// size fields in the header are not used for this: ffmpeg only patches them when it
// finalizes, so a killed capture leaves them at zero.
func InspectArtifact(path string) (*types.RecordingArtifact, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &RecordingEmptyError{Path: path, Message: "output file missing", Cause: err}
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, &RecordingEmptyError{Path: path, Message: "failed to stat output file", Cause: err}
	}

	format, dataOffset, err := readLayout(file)
	if err != nil {
		return nil, &RecordingEmptyError{Path: path, Message: "invalid WAV header", Cause: err}
	}
	if format.ByteRate == 0 {
		return nil, &RecordingEmptyError{Path: path, Message: "WAV header has zero byte rate"}
	}

	dataBytes := info.Size() - dataOffset
	if dataBytes <= 0 {
		return nil, &RecordingEmptyError{Path: path, Message: fmt.Sprintf("no audio after %d header bytes", dataOffset)}
	}
	duration := time.Duration(dataBytes) * time.Second / time.Duration(format.ByteRate)
	if duration <= 0 {
		return nil, &RecordingEmptyError{Path: path, Message: "zero duration"}
	}

	return &types.RecordingArtifact{
		Path:      path,
		Duration:  duration,
		SizeBytes: info.Size(),
	}, nil
}

// readLayout walks the RIFF chunks up to the data chunk. It returns the decoded
// fmt chunk and the offset at which audio samples start. Chunks other than fmt
// and data (ffmpeg writes a LIST/INFO chunk) are skipped.
func readLayout(r io.ReaderAt) (wav.WavFormat, int64, error) {
	var format wav.WavFormat

	var header [riffHeaderSize]byte
	if _, err := r.ReadAt(header[:], 0); err != nil {
		return format, 0, fmt.Errorf("short RIFF header: %w", err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return format, 0, errors.New("not a RIFF/WAVE file")
	}

	haveFormat := false
	offset := int64(riffHeaderSize)
	for {
		var chunk [8]byte
		if _, err := r.ReadAt(chunk[:], offset); err != nil {
			return format, 0, fmt.Errorf("data chunk not found: %w", err)
		}
		id := string(chunk[0:4])
		size := int64(binary.LittleEndian.Uint32(chunk[4:8]))
		body := offset + int64(len(chunk))

		switch id {
		case "fmt ":
			if err := binary.Read(io.NewSectionReader(r, body, size), binary.LittleEndian, &format); err != nil {
				return format, 0, fmt.Errorf("failed to decode fmt chunk: %w", err)
			}
			haveFormat = true
		case "data":
			if !haveFormat {
				return format, 0, errors.New("data chunk precedes fmt chunk")
			}
			return format, body, nil
		}

		// chunk bodies are padded to an even length
		offset = body + size + size%2
	}
}
