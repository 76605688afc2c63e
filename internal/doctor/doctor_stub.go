//go:build !portaudio

package doctor

func checkPortAudio() Result {
	return Result{Name: "portaudio", Pass: true, Detail: "skipped (built without -tags portaudio)"}
}
