// Package hostio holds the backend-independent parts of the display, sound
// and keyboard backends.
package hostio

// Tone is a square wave generator.
type Tone struct {
	period int // samples per cycle
	pos    int
}

func NewTone(sampleRate, hz int) *Tone {
	return &Tone{period: max(sampleRate/hz, 2)}
}

// High reports whether the next sample is in the upper half of the wave.
func (t *Tone) High() bool {
	high := t.pos < t.period/2
	t.pos = (t.pos + 1) % t.period
	return high
}

// U8 returns n unsigned 8-bit samples centred on 0x80.
func (t *Tone) U8(n int, amplitude uint8) []byte {
	samples := make([]byte, n)
	for i := range samples {
		if t.High() {
			samples[i] = 0x80 + amplitude
		} else {
			samples[i] = 0x80 - amplitude
		}
	}
	return samples
}

// Stereo fills samples with the wave at the given volume.
func (t *Tone) Stereo(samples [][2]float64, volume float64) {
	for i := range samples {
		v := -volume
		if t.High() {
			v = volume
		}
		samples[i][0] = v
		samples[i][1] = v
	}
}
