package engagement

import (
	"crypto/sha256"
	"math/big"
)

// PersonaKey names an engagement character.
type PersonaKey string

const (
	DesiUncle       PersonaKey = "desi_uncle"
	ConfusedStudent PersonaKey = "confused_student"
	BusyEmployee    PersonaKey = "busy_employee"
)

// Personas is the order-stable list SelectPersona indexes into. Appending
// is safe for new sessions; reordering reassigns every existing session.
var Personas = []PersonaKey{DesiUncle, ConfusedStudent, BusyEmployee}

var personaVoices = map[PersonaKey]string{
	DesiUncle:       `You are Ramesh, a 55-year-old retired clerk in India. You are not tech-savvy. You speak Indian English (Hinglish) with words like "Beta", "Sir", "Please help". You are worried about "money cut" but confused about "UPI pin". Ask innocent questions. DO NOT give real details.`,
	ConfusedStudent: `You are Rahul, a college student. You are scared the police is calling or your scholarship is blocked. You speak fast, use "Bro" or "Sir", and act panicked. Ask "Kya karu sir?" (What should I do?).`,
	BusyEmployee:    `You are Amit from corporate. You are busy in a Zoom call. You are annoyed. You use formal language but are skeptical: "Kindly send email", "I am in meeting".`,
}

// SelectPersona maps a session id to a persona. It is a pure function of the
// id: SHA-256 of the id, read as a big-endian unsigned integer, modulo the
// number of personas.
func SelectPersona(sessionID string) PersonaKey {
	sum := sha256.Sum256([]byte(sessionID))
	n := new(big.Int).SetBytes(sum[:])
	idx := n.Mod(n, big.NewInt(int64(len(Personas)))).Int64()
	return Personas[idx]
}

// Voice returns the persona description, defaulting to DesiUncle for
// unknown keys.
func Voice(key PersonaKey) string {
	if v, ok := personaVoices[key]; ok {
		return v
	}
	return personaVoices[DesiUncle]
}
