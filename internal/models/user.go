package models

// Роли пользователей
const (
	RoleCitizen  = "citizen"
	RoleOfficial = "official"
)

// User - идентичность, которую поставляет внешний шлюз аутентификации.
// Сервис её только потребляет, сам пользователей не хранит.
type User struct {
	ID     string `json:"id"`
	Role   string `json:"role"`
	Region string `json:"region,omitempty"` // только для official
}

// IsOfficial сообщает, может ли пользователь закрывать отчеты
func (u User) IsOfficial() bool {
	return u.Role == RoleOfficial
}
