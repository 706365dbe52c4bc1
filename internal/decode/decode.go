// Package decode reads whole audio files into shared PCM buffers and
// attaches tag metadata to the track.
package decode

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"

	"github.com/evenfall/drift/internal/audio"
)

const (
	extMP3  = ".mp3"
	extFLAC = ".flac"
	extWAV  = ".wav"
	extOGG  = ".ogg"
	extOPUS = ".opus"
)

// streamChunk is how many frames are pulled from the decoder per read.
const streamChunk = 4096

// File decodes the file at path into a non-interleaved float32 buffer
// and returns the track augmented with format and tag metadata.
func File(path string) (*audio.Buffer, audio.Track, error) {
	track := audio.Track{URI: path}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case extMP3, extFLAC, extWAV, extOGG, extOPUS:
	default:
		return nil, track, fmt.Errorf("unsupported format: %s", ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, track, err
	}
	defer f.Close()

	readTags(f, &track)
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, track, err
	}

	var streamer beep.StreamSeekCloser
	var format beep.Format
	switch ext {
	case extMP3:
		streamer, format, err = mp3.Decode(f)
	case extFLAC:
		// Skip ID3v2 tag if present (some taggers add it to FLAC files)
		if err := skipID3v2(f); err != nil {
			return nil, track, err
		}
		streamer, format, err = flac.Decode(f)
	case extWAV:
		streamer, format, err = wav.Decode(f)
	case extOGG, extOPUS:
		streamer, format, err = vorbis.Decode(f)
	}
	if err != nil {
		return nil, track, err
	}
	defer streamer.Close()

	buf, err := collect(streamer, format)
	if err != nil {
		return nil, track, err
	}
	return buf, track.WithFormat(buf), nil
}

// collect drains a streamer into a buffer. Mono sources keep one
// channel; everything else is kept as stereo.
func collect(s beep.Streamer, format beep.Format) (*audio.Buffer, error) {
	channels := 2
	if format.NumChannels == 1 {
		channels = 1
	}
	buf := &audio.Buffer{
		Data:       make([][]float32, channels),
		SampleRate: int(format.SampleRate),
	}

	chunk := make([][2]float64, streamChunk)
	for {
		n, ok := s.Stream(chunk)
		for i := 0; i < n; i++ {
			buf.Data[0] = append(buf.Data[0], float32(chunk[i][0]))
			if channels == 2 {
				buf.Data[1] = append(buf.Data[1], float32(chunk[i][1]))
			}
		}
		if !ok {
			if err := s.Err(); err != nil {
				return nil, err
			}
			break
		}
	}
	if buf.Frames() == 0 {
		return nil, fmt.Errorf("no audio frames decoded")
	}
	return buf, nil
}

// readTags fills title/artist/album from the file's metadata; missing
// or unreadable tags fall back to the file name.
func readTags(f *os.File, t *audio.Track) {
	m, err := tag.ReadFrom(f)
	if err != nil {
		t.Title = filepath.Base(t.URI)
		return
	}
	t.Title = m.Title()
	t.Artist = m.Artist()
	t.Album = m.Album()
	if t.Title == "" {
		t.Title = filepath.Base(t.URI)
	}
}

// skipID3v2 skips an ID3v2 tag if present at the beginning of the file.
// Some FLAC files have ID3v2 tags prepended, which the FLAC decoder
// doesn't handle.
func skipID3v2(r io.ReadSeeker) error {
	header := make([]byte, 10)
	n, err := r.Read(header)
	if err != nil {
		return err
	}
	if n < 10 || string(header[0:3]) != "ID3" {
		_, err = r.Seek(0, io.SeekStart)
		return err
	}

	// Syncsafe 28-bit size in bytes 6-9.
	size := int64(header[6]&0x7f)<<21 |
		int64(header[7]&0x7f)<<14 |
		int64(header[8]&0x7f)<<7 |
		int64(header[9]&0x7f)
	_, err = r.Seek(10+size, io.SeekStart)
	return err
}
