package client

import "strings"

// Output is one downloadable rendition: a video track paired with the best
// available audio track.
type Output struct {
	Label   string
	VideoID string
	AudioID string
}

// OutputSelection is the ordered list of outputs of a session, in the order
// the video tracks are listed.
type OutputSelection struct {
	outputs []Output
}

// Len returns the number of outputs.
func (s OutputSelection) Len() int { return len(s.outputs) }

// All returns a copy of the outputs in order.
func (s OutputSelection) All() []Output {
	return append([]Output(nil), s.outputs...)
}

// Labels returns the output labels in order.
func (s OutputSelection) Labels() []string {
	labels := make([]string, 0, len(s.outputs))
	for _, o := range s.outputs {
		labels = append(labels, o.Label)
	}
	return labels
}

// Get returns the first output carrying label.
func (s OutputSelection) Get(label string) (Output, bool) {
	for _, o := range s.outputs {
		if o.Label == label {
			return o, true
		}
	}
	return Output{}, false
}

// Best returns the first output.
func (s OutputSelection) Best() (Output, bool) {
	if len(s.outputs) == 0 {
		return Output{}, false
	}
	return s.outputs[0], true
}

// Select resolves a fallback chain such as "1080p/720p/best". Each
// alternative is a label, "best" (first output) or "worst" (last output);
// the first alternative present wins.
func (s OutputSelection) Select(expr string) (Output, bool) {
	for _, alt := range strings.Split(expr, "/") {
		alt = strings.TrimSpace(alt)
		switch strings.ToLower(alt) {
		case "":
			continue
		case "best":
			if o, ok := s.Best(); ok {
				return o, true
			}
		case "worst":
			if n := len(s.outputs); n > 0 {
				return s.outputs[n-1], true
			}
		default:
			if o, ok := s.Get(alt); ok {
				return o, true
			}
		}
	}
	return Output{}, false
}

// Map renders the selection as label -> [video id, audio id].
func (s OutputSelection) Map() map[string][2]string {
	m := make(map[string][2]string, len(s.outputs))
	for _, o := range s.outputs {
		if _, dup := m[o.Label]; !dup {
			m[o.Label] = [2]string{o.VideoID, o.AudioID}
		}
	}
	return m
}

// ListOutputs pairs every available video track with the available audio
// track of the highest quality level. Ties keep the first listed track. A
// session without any available audio has no outputs.
func ListOutputs(session *WatchSession) OutputSelection {
	if session == nil || session.Media.Domand == nil {
		return OutputSelection{}
	}
	domand := session.Media.Domand

	bestAudio := -1
	for i, a := range domand.Audios {
		if !a.IsAvailable {
			continue
		}
		if bestAudio < 0 || a.QualityLevel > domand.Audios[bestAudio].QualityLevel {
			bestAudio = i
		}
	}
	if bestAudio < 0 {
		return OutputSelection{}
	}
	audioID := domand.Audios[bestAudio].ID

	var outputs []Output
	for _, v := range domand.Videos {
		if !v.IsAvailable {
			continue
		}
		outputs = append(outputs, Output{Label: v.Label, VideoID: v.ID, AudioID: audioID})
	}
	return OutputSelection{outputs: outputs}
}
