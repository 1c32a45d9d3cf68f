package game

// Score computes the per-player point changes for one resolved guess.
// roles must map exactly one player to each role. Every player in roles
// gets an entry, zero included.
func Score(roles map[string]Role, guessedID string) (delta map[string]int, correct bool) {
	holder := make(map[Role]string, len(roles))
	delta = make(map[string]int, len(roles))
	for id, r := range roles {
		holder[r] = id
		delta[id] = 0
	}

	correct = guessedID == holder[RoleChor]

	delta[holder[RoleRaja]] += DefaultPoints[RoleRaja]
	delta[holder[RoleSipahi]] += DefaultPoints[RoleSipahi]
	delta[holder[RoleChor]] += DefaultPoints[RoleChor]
	if correct {
		delta[holder[RoleMantri]] += DefaultPoints[RoleMantri]
	} else {
		// the Chor walks off with the Mantri's points
		delta[holder[RoleChor]] += DefaultPoints[RoleMantri]
	}
	return delta, correct
}

func outcomeMessage(correct bool) string {
	if correct {
		return "Mantri guessed correctly!"
	}
	return "Mantri guessed incorrectly. Chor steals Mantri points."
}
