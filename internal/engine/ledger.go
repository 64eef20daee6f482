package engine

// claim gives character to playerName. It fails with ErrCharacterTaken, and
// changes nothing, when another player already holds it. It does not release
// the player's current character; go through choose for that.
func (r *Room) claim(character, playerName string) error {
	if holder, ok := r.Characters[character]; ok && holder != playerName {
		return ErrCharacterTaken
	}
	r.Characters[character] = playerName
	if p := r.PlayerByName(playerName); p != nil {
		p.Character = character
	}
	return nil
}

func (r *Room) Release(character string) {
	holder, ok := r.Characters[character]
	if !ok {
		return
	}
	delete(r.Characters, character)
	if p := r.PlayerByName(holder); p != nil && p.Character == character {
		p.Character = ""
		p.Locked = false
	}
}

// ReleaseAll frees every character held by playerName and reports how many
// were freed.
func (r *Room) ReleaseAll(playerName string) int {
	n := 0
	for character, holder := range r.Characters {
		if holder == playerName {
			delete(r.Characters, character)
			n++
		}
	}
	if p := r.PlayerByName(playerName); p != nil {
		p.Character = ""
		p.Locked = false
	}
	return n
}

// choose switches p to character. The previous selection is only dropped once
// the new claim is known to succeed.
func (r *Room) choose(p *Player, character, previous string) ([]Event, error) {
	if holder, ok := r.Characters[character]; ok && holder != p.Name {
		return nil, ErrCharacterTaken
	}
	if previous != "" && previous != character && r.Characters[previous] == p.Name {
		r.Release(previous)
	}
	if p.Character != "" && p.Character != character {
		r.Release(p.Character)
	}
	if err := r.claim(character, p.Name); err != nil {
		return nil, err
	}
	return []Event{{Type: EvtCharactersChanged, PlayerName: p.Name}}, nil
}

func (r *Room) CharacterMap() map[string]string {
	out := make(map[string]string, len(r.Characters))
	for character, holder := range r.Characters {
		out[character] = holder
	}
	return out
}
