package mixer

// AudioChannel is one per-input row of the audio mixer.
type AudioChannel struct {
	Key    string  `json:"key"`
	Title  string  `json:"title"`
	Muted  bool    `json:"muted"`
	Volume float64 `json:"volume"`
}

// AudioChannels is the audio mixer panel.
type AudioChannels struct {
	Inputs       []AudioChannel `json:"inputs"`
	Buses        []BusSnapshot  `json:"buses"`
	MasterVolume float64        `json:"masterVolume"`
	MasterMute   bool           `json:"masterMute"`
}

// ViewModel is the operator-facing projection of a StatusSnapshot.
type ViewModel struct {
	Inputs        []InputSnapshot `json:"inputs"`
	ProgramInput  *InputSnapshot  `json:"programInput"`
	PreviewInput  *InputSnapshot  `json:"previewInput"`
	AudioChannels AudioChannels   `json:"audioChannels"`
}

// BuildViewModel projects a snapshot into a ViewModel. It is pure and is
// recomputed in full for every snapshot. When several inputs claim Program
// (or Preview) the first in document order wins.
func BuildViewModel(s StatusSnapshot) ViewModel {
	s = s.clone()

	vm := ViewModel{
		Inputs: s.Inputs,
		AudioChannels: AudioChannels{
			Inputs:       make([]AudioChannel, 0, len(s.Inputs)),
			Buses:        s.Audio.Buses,
			MasterVolume: s.Audio.MasterVolume,
			MasterMute:   s.Audio.MasterMute,
		},
	}

	for i := range s.Inputs {
		in := s.Inputs[i]
		if in.Selected && vm.ProgramInput == nil {
			vm.ProgramInput = &in
		}
		if in.Preview && vm.PreviewInput == nil {
			vm.PreviewInput = &in
		}
		vm.AudioChannels.Inputs = append(vm.AudioChannels.Inputs, AudioChannel{
			Key:    in.Key,
			Title:  in.ShortTitle,
			Muted:  in.Muted,
			Volume: in.Volume,
		})
	}

	return vm
}

// Channel returns the audio row for key.
func (vm ViewModel) Channel(key string) (AudioChannel, bool) {
	for _, c := range vm.AudioChannels.Inputs {
		if c.Key == key {
			return c, true
		}
	}
	return AudioChannel{}, false
}
