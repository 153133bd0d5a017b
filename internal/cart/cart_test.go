package cart_test

import (
	"testing"

	"github.com/savelx/grocery-shop/internal/cart"
	"github.com/savelx/grocery-shop/internal/domain/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func product(id int64, name string, price string) *models.Product {
	return &models.Product{
		ID:    id,
		Name:  name,
		Price: decimal.RequireFromString(price),
		Unit:  "kg",
	}
}

func TestAdd_NewAndMerge(t *testing.T) {
	c := cart.New()

	// новый товар вставляется, повторное добавление увеличивает количество
	c.Add(product(1, "Apples", "50"), 2)
	c.Add(product(1, "Apples", "50"), 3)

	snapshot := c.Snapshot()
	assert.Len(t, snapshot, 1)
	assert.Equal(t, int64(1), snapshot[0].ProductID)
	assert.Equal(t, 5, snapshot[0].Quantity)
}

func TestAdd_QuantityFloor(t *testing.T) {
	c := cart.New()

	// количество меньше единицы поднимается до 1
	c.Add(product(1, "Apples", "50"), 0)

	snapshot := c.Snapshot()
	assert.Len(t, snapshot, 1)
	assert.Equal(t, 1, snapshot[0].Quantity)
}

func TestSetQuantity_ZeroRemovesLine(t *testing.T) {
	c := cart.New()
	c.Add(product(1, "Apples", "50"), 2)
	c.Add(product(2, "Milk", "80"), 1)

	// q <= 0 эквивалентно удалению строки
	c.SetQuantity(1, 0)

	snapshot := c.Snapshot()
	assert.Len(t, snapshot, 1)
	assert.Equal(t, int64(2), snapshot[0].ProductID)

	c.SetQuantity(2, -5)
	assert.Empty(t, c.Snapshot())
}

func TestSetQuantity_Direct(t *testing.T) {
	c := cart.New()
	c.Add(product(1, "Apples", "50"), 2)

	c.SetQuantity(1, 7)

	snapshot := c.Snapshot()
	assert.Equal(t, 7, snapshot[0].Quantity)
}

func TestRemove_AbsentIsNoop(t *testing.T) {
	c := cart.New()
	c.Add(product(1, "Apples", "50"), 1)

	// удаление отсутствующего товара — не ошибка
	c.Remove(42)

	assert.Len(t, c.Snapshot(), 1)
}

func TestClear(t *testing.T) {
	c := cart.New()
	c.Add(product(1, "Apples", "50"), 1)
	c.Add(product(2, "Milk", "80"), 2)

	c.Clear()

	assert.Empty(t, c.Snapshot())
	assert.True(t, c.Total().IsZero())
}

func TestSnapshot_Isolation(t *testing.T) {
	c := cart.New()
	c.Add(product(1, "Apples", "50"), 2)

	notified := 0
	unsubscribe := c.Subscribe(func(items []cart.Item) { notified++ })
	defer unsubscribe()
	assert.Equal(t, 1, notified, "subscribe replays current state once")

	// мутация снимка не затрагивает внутреннее состояние и не триггерит рассылку
	snapshot := c.Snapshot()
	snapshot[0].Quantity = 999
	snapshot[0].Product.Name = "Hacked"

	fresh := c.Snapshot()
	assert.Equal(t, 2, fresh[0].Quantity)
	assert.Equal(t, "Apples", fresh[0].Product.Name)
	assert.Equal(t, 1, notified, "no notification on snapshot mutation")
}

func TestSubscribe_ImmediateReplayAndUnsubscribe(t *testing.T) {
	c := cart.New()
	c.Add(product(1, "Apples", "50"), 2)

	var last []cart.Item
	calls := 0
	unsubscribe := c.Subscribe(func(items []cart.Item) {
		calls++
		last = items
	})

	// первый вызов приходит сразу с текущим снимком
	assert.Equal(t, 1, calls)
	assert.Len(t, last, 1)

	c.Add(product(2, "Milk", "80"), 1)
	assert.Equal(t, 2, calls)
	assert.Len(t, last, 2)

	unsubscribe()
	c.Clear()
	assert.Equal(t, 2, calls, "no notifications after unsubscribe")
}

func TestObserverIsolation_PanicDoesNotStopOthers(t *testing.T) {
	c := cart.New()

	panicking := 0
	healthy := 0
	c.Subscribe(func(items []cart.Item) {
		panicking++
		panic("broken observer")
	})
	c.Subscribe(func(items []cart.Item) {
		healthy++
	})

	// паника одного наблюдателя не мешает остальным получить рассылку
	c.Add(product(1, "Apples", "50"), 1)

	assert.Equal(t, 2, panicking)
	assert.Equal(t, 2, healthy)
}

func TestTotal(t *testing.T) {
	c := cart.New()
	c.Add(product(1, "Apples", "50"), 2)
	c.Add(product(2, "Milk", "80.50"), 1)

	assert.True(t, c.Total().Equal(decimal.RequireFromString("180.50")))
}

func TestManager_OneCartPerUser(t *testing.T) {
	m := cart.NewManager()

	c1 := m.CartFor(1)
	c1.Add(product(1, "Apples", "50"), 1)

	// тот же пользователь получает ту же корзину, другой — пустую
	assert.Len(t, m.CartFor(1).Snapshot(), 1)
	assert.Empty(t, m.CartFor(2).Snapshot())
}
