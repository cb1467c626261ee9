package model

import (
	"fmt"
	"sort"
	"time"
)

const (
	// FirstHour и LastHour границы часовых слотов в календаре поста
	FirstHour = 7
	LastHour  = 22

	// SessionLength длительность одного занятия, слот HH:00 заканчивается в HH:50
	SessionLength = 50 * time.Minute

	dateLayout = "2006-01-02"
)

// SlotRef слабая ссылка на слот поста: дата + час
type SlotRef struct {
	Date string `json:"date"` // YYYY-MM-DD
	Hour int    `json:"hour"`
}

// NewSlotRef создаёт ссылку на слот из даты
func NewSlotRef(day time.Time, hour int) SlotRef {
	return SlotRef{Date: day.Format(dateLayout), Hour: hour}
}

// Day дата слота в UTC, для записи в колонку date
func (r SlotRef) Day() (time.Time, error) {
	return time.Parse(dateLayout, r.Date)
}

// Validate проверяет формат даты и диапазон часа
func (r SlotRef) Validate() error {
	if _, err := time.Parse(dateLayout, r.Date); err != nil {
		return fmt.Errorf("invalid slot date %q: %w", r.Date, err)
	}
	if r.Hour < FirstHour || r.Hour > LastHour {
		return fmt.Errorf("slot hour %d out of range %d-%d", r.Hour, FirstHour, LastHour)
	}
	return nil
}

// TimeRange переводит ссылку в структурированный интервал занятия
func (r SlotRef) TimeRange(loc *time.Location) (TimeRange, error) {
	if err := r.Validate(); err != nil {
		return TimeRange{}, err
	}
	day, _ := time.Parse(dateLayout, r.Date)
	// Час по настенным часам зоны, а не смещение от полуночи: в дни перевода
	// часов они расходятся
	start := time.Date(day.Year(), day.Month(), day.Day(), r.Hour, 0, 0, 0, loc)
	return TimeRange{Start: start}, nil
}

func (r SlotRef) String() string {
	return fmt.Sprintf("%s %02d:00", r.Date, r.Hour)
}

// Less упорядочивает слоты по дате, затем по часу
func (r SlotRef) Less(other SlotRef) bool {
	if r.Date != other.Date {
		return r.Date < other.Date
	}
	return r.Hour < other.Hour
}

// SlotCalendar дата -> час -> открыт ли слот
type SlotCalendar map[string]map[int]bool

// IsOpen возвращает true только для существующего и открытого слота
func (c SlotCalendar) IsOpen(ref SlotRef) bool {
	hours, ok := c[ref.Date]
	if !ok {
		return false
	}
	return hours[ref.Hour]
}

// Open добавляет открытый слот (используется при создании поста)
func (c SlotCalendar) Open(ref SlotRef) {
	hours, ok := c[ref.Date]
	if !ok {
		hours = make(map[int]bool)
		c[ref.Date] = hours
	}
	hours[ref.Hour] = true
}

// Close закрывает слот. Слоты никогда не удаляются, только переключаются
func (c SlotCalendar) Close(ref SlotRef) {
	if hours, ok := c[ref.Date]; ok {
		if _, exists := hours[ref.Hour]; exists {
			hours[ref.Hour] = false
		}
	}
}

// OpenSlots возвращает открытые слоты в порядке даты и часа
func (c SlotCalendar) OpenSlots() []SlotRef {
	var refs []SlotRef
	for date, hours := range c {
		for hour, open := range hours {
			if open {
				refs = append(refs, SlotRef{Date: date, Hour: hour})
			}
		}
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Less(refs[j]) })
	return refs
}

// Clone глубокая копия календаря
func (c SlotCalendar) Clone() SlotCalendar {
	out := make(SlotCalendar, len(c))
	for date, hours := range c {
		cp := make(map[int]bool, len(hours))
		for h, open := range hours {
			cp[h] = open
		}
		out[date] = cp
	}
	return out
}

// TimeRange интервал одного занятия. Источник истины для расчётов,
// строковое представление только для отображения
type TimeRange struct {
	Start time.Time `json:"start"`
}

// End время окончания занятия
func (t TimeRange) End() time.Time {
	return t.Start.Add(SessionLength)
}

// Format отображает интервал как "2024-06-01 (Sat) 09:00 - 09:50"
func (t TimeRange) Format() string {
	return fmt.Sprintf("%s %s - %s",
		t.Start.Format("2006-01-02 (Mon)"),
		t.Start.Format("15:04"),
		t.End().Format("15:04"),
	)
}
