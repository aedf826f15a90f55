package silk

import (
	"fmt"

	"github.com/sjzar/go-lame"
	"github.com/sjzar/go-silk"
)

// SampleRate is the fixed decode rate of the voice codec.
const SampleRate = 24000

// Silk2PCM decodes a silk voice payload to 16-bit mono PCM.
func Silk2PCM(data []byte) ([]byte, error) {
	sd := silk.SilkInit()
	defer sd.Close()

	pcmdata := sd.Decode(data)
	if len(pcmdata) == 0 {
		return nil, fmt.Errorf("silk decode failed")
	}
	return pcmdata, nil
}

// Silk2WAV decodes a silk voice payload and packages it into a WAV container.
func Silk2WAV(data []byte) ([]byte, error) {
	pcmdata, err := Silk2PCM(data)
	if err != nil {
		return nil, err
	}
	return PCM2WAV(pcmdata, SampleRate), nil
}

// Silk2MP3 decodes a silk voice payload and encodes it to MP3.
func Silk2MP3(data []byte) ([]byte, error) {
	pcmdata, err := Silk2PCM(data)
	if err != nil {
		return nil, err
	}

	le := lame.Init()
	defer le.Close()

	le.SetInSamplerate(SampleRate)
	le.SetOutSamplerate(SampleRate)
	le.SetNumChannels(1)
	le.SetBitrate(16)
	// IMPORTANT!
	le.InitParams()

	mp3data := le.Encode(pcmdata)
	if len(mp3data) == 0 {
		return nil, fmt.Errorf("mp3 encode failed")
	}

	return mp3data, nil
}
