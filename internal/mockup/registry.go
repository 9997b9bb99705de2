package mockup

import "sync"

const MaxSlots = 8

// SlotLabels names the small upload slots in index order.
var SlotLabels = [MaxSlots]string{"Atasan", "Bawahan", "Sepatu", "Aksesoris", "Tas", "Topi", "Luaran", "Terusan"}

// Availability reports which upload mode the user may not write to.
type Availability struct {
	SmallSlotsDisabled bool `json:"small_slots_disabled"`
	FullOutfitDisabled bool `json:"full_outfit_disabled"`
}

// Assets is an immutable view of the registry taken at one instant.
type Assets struct {
	Slots      [MaxSlots]ImagePart
	FullOutfit ImagePart
	Face       ImagePart
}

func (a Assets) HasSmall() bool {
	for _, p := range a.Slots {
		if !p.IsZero() {
			return true
		}
	}
	return false
}

func (a Assets) HasFullOutfit() bool { return !a.FullOutfit.IsZero() }

func (a Assets) HasFace() bool { return !a.Face.IsZero() }

func (a Assets) HasAny() bool { return a.HasSmall() || a.HasFullOutfit() }

func (a Assets) Filled() []int {
	var out []int
	for i, p := range a.Slots {
		if !p.IsZero() {
			out = append(out, i)
		}
	}
	return out
}

func (a Assets) Availability() Availability {
	return Availability{
		SmallSlotsDisabled: a.HasFullOutfit(),
		FullOutfitDisabled: a.HasSmall(),
	}
}

// Registry holds the uploaded inputs of one session. Set* methods accept
// any state; Put* methods refuse writes to the disabled upload mode.
type Registry struct {
	mu     sync.RWMutex
	assets Assets
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) Snapshot() Assets {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.assets
}

func (r *Registry) Availability() Availability {
	return r.Snapshot().Availability()
}

func (r *Registry) SetSlotImage(index int, part ImagePart) Availability {
	return r.mutate(func(a *Assets) {
		if index < 0 || index >= MaxSlots || part.IsZero() {
			return
		}
		a.Slots[index] = part
	})
}

func (r *Registry) ClearSlot(index int) Availability {
	return r.mutate(func(a *Assets) {
		if index < 0 || index >= MaxSlots {
			return
		}
		a.Slots[index] = ImagePart{}
	})
}

func (r *Registry) SetFullOutfit(part ImagePart) Availability {
	return r.mutate(func(a *Assets) {
		if part.IsZero() {
			return
		}
		a.FullOutfit = part
	})
}

func (r *Registry) ClearFullOutfit() Availability {
	return r.mutate(func(a *Assets) { a.FullOutfit = ImagePart{} })
}

func (r *Registry) SetFace(part ImagePart) Availability {
	return r.mutate(func(a *Assets) {
		if part.IsZero() {
			return
		}
		a.Face = part
	})
}

func (r *Registry) ClearFace() Availability {
	return r.mutate(func(a *Assets) { a.Face = ImagePart{} })
}

// Clear drops every uploaded image.
func (r *Registry) Clear() Availability {
	return r.mutate(func(a *Assets) { *a = Assets{} })
}

func (r *Registry) PutSlotImage(index int, part ImagePart) (Availability, error) {
	if index < 0 || index >= MaxSlots {
		return r.Availability(), ErrSlotIndex
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.assets.Availability().SmallSlotsDisabled {
		return r.assets.Availability(), ErrSlotUnavailable
	}
	if !part.IsZero() {
		r.assets.Slots[index] = part
	}
	return r.assets.Availability(), nil
}

// PutNextSlotImage stores part in the first empty small slot.
func (r *Registry) PutNextSlotImage(part ImagePart) (int, Availability, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.assets.Availability().SmallSlotsDisabled {
		return -1, r.assets.Availability(), ErrSlotUnavailable
	}
	for i, p := range r.assets.Slots {
		if p.IsZero() {
			if !part.IsZero() {
				r.assets.Slots[i] = part
			}
			return i, r.assets.Availability(), nil
		}
	}
	return -1, r.assets.Availability(), ErrSlotIndex
}

func (r *Registry) PutFullOutfit(part ImagePart) (Availability, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.assets.Availability().FullOutfitDisabled {
		return r.assets.Availability(), ErrSlotUnavailable
	}
	if !part.IsZero() {
		r.assets.FullOutfit = part
	}
	return r.assets.Availability(), nil
}

func (r *Registry) mutate(fn func(a *Assets)) Availability {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.assets)
	return r.assets.Availability()
}
