package wager

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/sha3"
)

const saltBytes = 16

// NewSalt генерирует случайную соль для коммитмента.
func NewSalt() (string, error) {
	b := make([]byte, saltBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("ошибка генерации соли: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Commit возвращает SHA3-256 от "roundID|move|salt" в hex.
// Коммитмент отдаётся игроку при ставке, соль раскрывается после расчёта:
// так игрок может проверить, что ход соперника не менялся после его хода.
func Commit(roundID string, move Move, salt string) string {
	sum := sha3.Sum256([]byte(roundID + "|" + string(move) + "|" + salt))
	return hex.EncodeToString(sum[:])
}

// VerifyCommitment проверяет раскрытый ход против коммитмента.
func VerifyCommitment(commitment, roundID string, move Move, salt string) bool {
	expected := Commit(roundID, move, salt)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(commitment)) == 1
}
