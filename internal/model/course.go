package model

import "fmt"

// CourseOption пакет занятий, который можно купить в посте
type CourseOption string

const (
	CourseTrial CourseOption = "trial" // Пробное занятие за 1 монету
	CourseX1    CourseOption = "x1"
	CourseX3    CourseOption = "x3"
	CourseX5    CourseOption = "x5"
	CourseX10   CourseOption = "x10"
)

// TrialPrice цена пробного занятия, не зависит от coin_cost поста
const TrialPrice = 1

var sessionCounts = map[CourseOption]int{
	CourseTrial: 1,
	CourseX1:    1,
	CourseX3:    3,
	CourseX5:    5,
	CourseX10:   10,
}

// ParseCourseOption разбирает строковое значение пакета
func ParseCourseOption(s string) (CourseOption, error) {
	opt := CourseOption(s)
	if _, ok := sessionCounts[opt]; !ok {
		return "", fmt.Errorf("unknown course option %q", s)
	}
	return opt, nil
}

// Valid проверяет что пакет входит в фиксированный список
func (o CourseOption) Valid() bool {
	_, ok := sessionCounts[o]
	return ok
}

// Sessions возвращает количество занятий в пакете
func (o CourseOption) Sessions() int {
	return sessionCounts[o]
}

// Price считает стоимость пакета в монетах
func (o CourseOption) Price(coinCost int) int {
	if o == CourseTrial {
		return TrialPrice
	}
	return o.Sessions() * coinCost
}
