package wake

import (
	"math"
	"time"
)

// VADConfig tunes the energy detector. Threshold is an RMS floor in int16 units;
// the effective threshold rises with the measured background level.
type VADConfig struct {
	SampleRate  int
	Channels    int
	Threshold   float64
	MinSpeech   time.Duration
	MinSilence  time.Duration
	HistorySize int
}

func DefaultVADConfig() VADConfig {
	return VADConfig{
		SampleRate:  16000,
		Channels:    1,
		Threshold:   500,
		MinSpeech:   100 * time.Millisecond,
		MinSilence:  500 * time.Millisecond,
		HistorySize: 50,
	}
}

func (c VADConfig) withDefaults() VADConfig {
	d := DefaultVADConfig()
	if c.SampleRate <= 0 {
		c.SampleRate = d.SampleRate
	}
	if c.Channels <= 0 {
		c.Channels = d.Channels
	}
	if c.Threshold <= 0 {
		c.Threshold = d.Threshold
	}
	if c.MinSpeech <= 0 {
		c.MinSpeech = d.MinSpeech
	}
	if c.MinSilence <= 0 {
		c.MinSilence = d.MinSilence
	}
	if c.HistorySize <= 0 {
		c.HistorySize = d.HistorySize
	}
	return c
}

// EnergyVAD reports speech start and end edges from frame RMS with hysteresis.
// It is not safe for concurrent use.
type EnergyVAD struct {
	cfg VADConfig

	speaking   bool
	speechAcc  time.Duration
	silenceAcc time.Duration

	threshold    float64
	noiseHistory []float64
}

func NewEnergyVAD(cfg VADConfig) *EnergyVAD {
	cfg = cfg.withDefaults()
	return &EnergyVAD{
		cfg:          cfg,
		threshold:    cfg.Threshold,
		noiseHistory: make([]float64, 0, cfg.HistorySize),
	}
}

// Process consumes one block of interleaved PCM. changed reports whether the
// speaking state flipped on this block.
func (v *EnergyVAD) Process(pcm []int16) (speaking, changed bool) {
	if len(pcm) == 0 {
		return v.speaking, false
	}

	rms := CalculateRMS(pcm)
	dur := time.Duration(len(pcm)/v.cfg.Channels) * time.Second / time.Duration(v.cfg.SampleRate)

	if rms > v.threshold {
		v.speechAcc += dur
		v.silenceAcc = 0
		if !v.speaking && v.speechAcc >= v.cfg.MinSpeech {
			v.speaking = true
			return true, true
		}
		return v.speaking, false
	}

	v.silenceAcc += dur
	v.speechAcc = 0
	if !v.speaking {
		v.updateNoise(rms)
	}
	if v.speaking && v.silenceAcc >= v.cfg.MinSilence {
		v.speaking = false
		return false, true
	}
	return v.speaking, false
}

func (v *EnergyVAD) Speaking() bool    { return v.speaking }
func (v *EnergyVAD) Threshold() float64 { return v.threshold }

func (v *EnergyVAD) Reset() {
	v.speaking = false
	v.speechAcc = 0
	v.silenceAcc = 0
}

// updateNoise tracks the background level from non-speech blocks and keeps the
// threshold at twice its average, never below the configured floor.
func (v *EnergyVAD) updateNoise(rms float64) {
	v.noiseHistory = append(v.noiseHistory, rms)
	if len(v.noiseHistory) > v.cfg.HistorySize {
		v.noiseHistory = v.noiseHistory[1:]
	}
	if len(v.noiseHistory) < 10 {
		return
	}

	var sum float64
	for _, e := range v.noiseHistory {
		sum += e
	}
	v.threshold = math.Max(v.cfg.Threshold, 2*sum/float64(len(v.noiseHistory)))
}

func CalculateRMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		f := float64(s)
		sum += f * f
	}
	return math.Sqrt(sum / float64(len(samples)))
}
