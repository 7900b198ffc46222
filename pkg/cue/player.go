// Package cue plays short tones as the operator closes in on a stake.
package cue

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/generators"
	"github.com/gopxl/beep/v2/speaker"
)

const sampleRate = beep.SampleRate(48000)

// Player plays a tone. Play must not block for the duration of the tone.
type Player interface {
	Play(freq float64, d time.Duration) error
	Close() error
}

// NopPlayer discards every tone.
type NopPlayer struct{}

func (NopPlayer) Play(float64, time.Duration) error { return nil }
func (NopPlayer) Close() error                      { return nil }

// SpeakerPlayer plays sine tones on the default audio device.
type SpeakerPlayer struct {
	mu          sync.Mutex
	volume      float64
	initialized bool
	playing     bool
	// gen identifies the tone most recently queued; callbacks of tones
	// cut short by a newer one are ignored.
	gen uint64
}

// NewSpeakerPlayer creates a player. The audio device is opened on first use.
func NewSpeakerPlayer(volume float64) *SpeakerPlayer {
	if volume <= 0 || volume > 1 {
		volume = 1
	}
	return &SpeakerPlayer{volume: volume}
}

// Play queues a sine tone of the given frequency. A tone still sounding is cut
// short so cues never pile up behind a fast walker.
func (p *SpeakerPlayer) Play(freq float64, d time.Duration) error {
	if freq <= 0 || d <= 0 {
		return fmt.Errorf("invalid tone %.0f Hz for %s", freq, d)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		if err := speaker.Init(sampleRate, sampleRate.N(time.Second/10)); err != nil {
			slog.Error("Failed to initialize speaker", "error", err)
			return fmt.Errorf("failed to initialize speaker: %w", err)
		}
		p.initialized = true
	}

	tone, err := generators.SineTone(sampleRate, freq)
	if err != nil {
		return fmt.Errorf("failed to build tone: %w", err)
	}
	vol := &effects.Volume{
		Streamer: beep.Take(sampleRate.N(d), tone),
		Base:     2,
		Volume:   volumeToPower(p.volume),
		Silent:   p.volume <= 0.01,
	}

	speaker.Clear()
	gen := p.startLocked()
	speaker.Play(beep.Seq(vol, beep.Callback(func() {
		// the speaker lock is held here, so finish off the audio goroutine
		go p.finish(gen)
	})))
	return nil
}

// startLocked marks a new tone as sounding. Any earlier tone was cleared from
// the speaker and its callback will never run.
func (p *SpeakerPlayer) startLocked() uint64 {
	p.gen++
	p.playing = true
	return p.gen
}

func (p *SpeakerPlayer) finish(gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen == p.gen {
		p.playing = false
	}
}

// Busy reports whether a tone is sounding.
func (p *SpeakerPlayer) Busy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// Close silences the speaker.
func (p *SpeakerPlayer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.initialized {
		speaker.Clear()
	}
	p.gen++
	p.playing = false
	return nil
}

func volumeToPower(vol float64) float64 {
	// beep adds Volume to the exponent of Base
	if vol <= 0.01 {
		return -10
	}
	return math.Log2(vol)
}
