//go:build ignore

// verify_commitment.go — утилита для проверки честности раунда.
// Запуск: go run scripts/verify_commitment.go <round_id> <ход_соперника> <соль> <коммитмент>
//
// Все значения берутся из рассчитанного раунда (last_round в записи аккаунта).
package main

import (
	"fmt"
	"os"

	"serotonyl.ru/tokenarena/internal/features/wager"
)

func main() {
	if len(os.Args) < 5 {
		fmt.Println("Использование: go run scripts/verify_commitment.go <round_id> <ход> <соль> <коммитмент>")
		os.Exit(1)
	}

	roundID, rawMove, salt, commitment := os.Args[1], os.Args[2], os.Args[3], os.Args[4]

	move, err := wager.ParseMove(rawMove)
	if err != nil {
		fmt.Printf("Ошибка: %v\n", err)
		os.Exit(1)
	}

	if !wager.VerifyCommitment(commitment, roundID, move, salt) {
		fmt.Println("Коммитмент НЕ совпадает: ход соперника был изменён")
		fmt.Printf("Ожидалось: %s\n", wager.Commit(roundID, move, salt))
		os.Exit(2)
	}
	fmt.Println("Коммитмент совпадает: ход соперника был выбран до хода игрока")
}
