// Package common содержит общие утилиты, используемые во всём проекте:
// ошибки и часовые пояса.
package common

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// LoadLocation загружает часовой пояс по имени.
// Если tzdata в контейнере нет, для Europe/Moscow берём UTC+3 вручную,
// для остальных поясов — UTC.
func LoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err == nil {
		return loc
	}
	log.WithError(err).WithField("tz", name).Warn("Не удалось загрузить часовой пояс")
	if name == "Europe/Moscow" {
		return time.FixedZone("MSK", 3*60*60)
	}
	return time.UTC
}
