package pcm

// ToAlsaChannelOrder rearranges frames from the FLAC/WAV channel order to
// the ALSA order in place. For 5.1 and 7.1 the side and center/LFE pairs
// trade places: positions {2,3} swap with {4,5}; {6,7} stay. Other channel
// counts and sample sizes are left untouched.
func ToAlsaChannelOrder(buf []byte, sampleSize, channels int) {
	if channels != 6 && channels != 8 {
		return
	}
	if sampleSize != 2 && sampleSize != 4 {
		return
	}
	frameSize := sampleSize * channels
	for i := 0; i+frameSize <= len(buf); i += frameSize {
		swapSamples(buf[i:], sampleSize, 2, 4)
		swapSamples(buf[i:], sampleSize, 3, 5)
	}
}

func swapSamples(frame []byte, sampleSize, a, b int) {
	ao := a * sampleSize
	bo := b * sampleSize
	for k := 0; k < sampleSize; k++ {
		frame[ao+k], frame[bo+k] = frame[bo+k], frame[ao+k]
	}
}
