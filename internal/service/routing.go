package service

import "fmt"

// MayorRouter - маршрутизация по умолчанию: каждый населенный пункт
// обслуживает его мэр. Функция детерминирована: одинаковый населенный
// пункт всегда дает одинаковую метку назначения.
type MayorRouter struct{}

// NewMayorRouter создает маршрутизатор по мэрам
func NewMayorRouter() *MayorRouter {
	return &MayorRouter{}
}

// Assign возвращает метку ответственного для населенного пункта
func (MayorRouter) Assign(locality string) string {
	return fmt.Sprintf("%s Mayor", locality)
}
