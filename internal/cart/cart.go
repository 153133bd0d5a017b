package cart

import (
	"sync"
	"time"

	"github.com/savelx/grocery-shop/internal/domain/models"
	"github.com/shopspring/decimal"
)

// Item — строка корзины: product id уникален, quantity >= 1
// (обнуление количества удаляет строку)
type Item struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Unit      string          `json:"unit"`
	AddedAt   time.Time       `json:"added_at"`
	Product   *models.Product `json:"product,omitempty"` // снимок товара на момент добавления
}

// Observer получает полный снимок корзины при каждом изменении;
// потребители перерисовываются с нуля, диффы не рассылаются
type Observer func(items []Item)

// Service — корзина в памяти процесса с синхронной рассылкой снимков
// подписчикам. Никакой персистентности: рестарт процесса теряет состояние.
type Service struct {
	mu        sync.Mutex
	order     []int64 // порядок добавления product id
	items     map[int64]*Item
	observers map[int]Observer
	nextObsID int
}

func New() *Service {
	return &Service{
		items:     make(map[int64]*Item),
		observers: make(map[int]Observer),
	}
}

// Add добавляет товар: если product id уже в корзине — увеличивает количество,
// иначе вставляет новую строку (минимум 1)
func (s *Service) Add(product *models.Product, quantity int) {
	if quantity < 1 {
		quantity = 1
	}

	s.mu.Lock()
	if item, ok := s.items[product.ID]; ok {
		item.Quantity += quantity
	} else {
		s.items[product.ID] = &Item{
			ProductID: product.ID,
			Name:      product.Name,
			UnitPrice: product.Price,
			Quantity:  quantity,
			Unit:      product.Unit,
			AddedAt:   time.Now(),
			Product:   copyProduct(product),
		}
		s.order = append(s.order, product.ID)
	}
	s.mu.Unlock()

	s.notify()
}

// SetQuantity устанавливает количество напрямую; quantity <= 0 эквивалентно Remove
func (s *Service) SetQuantity(productID int64, quantity int) {
	if quantity <= 0 {
		s.Remove(productID)
		return
	}

	s.mu.Lock()
	if item, ok := s.items[productID]; ok {
		item.Quantity = quantity
	}
	s.mu.Unlock()

	s.notify()
}

// Remove удаляет строку; отсутствие строки — не ошибка
func (s *Service) Remove(productID int64) {
	s.mu.Lock()
	if _, ok := s.items[productID]; ok {
		delete(s.items, productID)
		for i, id := range s.order {
			if id == productID {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
	s.mu.Unlock()

	s.notify()
}

// Clear опустошает корзину
func (s *Service) Clear() {
	s.mu.Lock()
	s.items = make(map[int64]*Item)
	s.order = nil
	s.mu.Unlock()

	s.notify()
}

// Snapshot возвращает глубокую независимую копию корзины в порядке добавления:
// мутации возвращённого значения не затрагивают внутреннее состояние
func (s *Service) Snapshot() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Service) snapshotLocked() []Item {
	snapshot := make([]Item, 0, len(s.order))
	for _, id := range s.order {
		item := s.items[id]
		copied := *item
		copied.Product = copyProduct(item.Product)
		snapshot = append(snapshot, copied)
	}
	return snapshot
}

func copyProduct(p *models.Product) *models.Product {
	if p == nil {
		return nil
	}
	copied := *p
	return &copied
}

// Total считает сумму корзины по строкам
func (s *Service) Total() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := decimal.Zero
	for _, id := range s.order {
		item := s.items[id]
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

// Subscribe регистрирует наблюдателя и сразу вызывает его с текущим снимком,
// чтобы новому подписчику не нужен был отдельный начальный запрос.
// Возвращает функцию отписки.
func (s *Service) Subscribe(observer Observer) func() {
	s.mu.Lock()
	id := s.nextObsID
	s.nextObsID++
	s.observers[id] = observer
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	safeNotify(observer, snapshot)

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

// notify синхронно рассылает полный снимок всем наблюдателям;
// каждый получает собственную копию
func (s *Service) notify() {
	s.mu.Lock()
	observers := make([]Observer, 0, len(s.observers))
	for _, obs := range s.observers {
		observers = append(observers, obs)
	}
	snapshots := make([][]Item, len(observers))
	for i := range observers {
		snapshots[i] = s.snapshotLocked()
	}
	s.mu.Unlock()

	for i, obs := range observers {
		safeNotify(obs, snapshots[i])
	}
}

// safeNotify изолирует панику одного наблюдателя от остальных
func safeNotify(observer Observer, snapshot []Item) {
	defer func() {
		_ = recover()
	}()
	observer(snapshot)
}
