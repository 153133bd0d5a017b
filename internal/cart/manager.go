package cart

import "sync"

// Manager держит по одной корзине на аутентифицированного пользователя.
// Явно сконструированный экземпляр вместо глобального состояния пакета.
type Manager struct {
	mu    sync.Mutex
	carts map[int64]*Service
}

func NewManager() *Manager {
	return &Manager{carts: make(map[int64]*Service)}
}

// CartFor возвращает корзину пользователя, создавая её при первом обращении
func (m *Manager) CartFor(userID int64) *Service {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.carts[userID]; ok {
		return c
	}
	c := New()
	m.carts[userID] = c
	return c
}
