package tests

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"overcooked-storefront/cart-svc/internal/domain"
	"overcooked-storefront/cart-svc/internal/events"
	"overcooked-storefront/cart-svc/internal/mocks"
	"overcooked-storefront/cart-svc/internal/notify"
	"overcooked-storefront/cart-svc/internal/service"
	"overcooked-storefront/cart-svc/internal/storage"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("backend-secret"))
	require.NoError(t, err)
	return token
}

func newLocalCart(t *testing.T) (*service.CartService, *events.Bus, *notify.Center, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	bus := events.NewBus()
	center := notify.NewCenter(time.Minute)
	local := storage.NewLocalStore(storage.NewRedisKV(client, time.Hour))
	svc := service.NewCartService(nil, local, center, bus, "test-origin")
	return svc, bus, center, mr
}

func isLevel(level domain.NotificationLevel) interface{} {
	return mock.MatchedBy(func(n domain.Notification) bool { return n.Level == level })
}

func isUpdateFor(owner string) interface{} {
	return mock.MatchedBy(func(evt domain.CartEvent) bool {
		return evt.Kind == domain.EventCartUpdated && evt.Owner == owner
	})
}

func TestCartService_Resolve(t *testing.T) {
	svc := service.NewCartService(nil, nil, nil, nil, "origin")

	tests := []struct {
		name           string
		session        domain.Session
		expectedOwner  domain.Owner
		expectedSource domain.CartSource
		expectedError  error
	}{
		{
			name:           "anonymous_uses_local",
			session:        domain.Session{GuestID: "guest-1"},
			expectedOwner:  domain.Owner{Source: domain.SourceLocal, ID: "guest-1"},
			expectedSource: domain.SourceLocal,
		},
		{
			name:           "numeric_id_claim",
			session:        domain.Session{Token: signToken(t, jwt.MapClaims{"id": 42})},
			expectedOwner:  domain.Owner{Source: domain.SourceRemote, ID: "42"},
			expectedSource: domain.SourceRemote,
		},
		{
			name:           "user_id_claim",
			session:        domain.Session{Token: signToken(t, jwt.MapClaims{"user_id": "u-7"})},
			expectedOwner:  domain.Owner{Source: domain.SourceRemote, ID: "u-7"},
			expectedSource: domain.SourceRemote,
		},
		{
			name:           "sub_claim",
			session:        domain.Session{Token: signToken(t, jwt.MapClaims{"sub": "abc"})},
			expectedOwner:  domain.Owner{Source: domain.SourceRemote, ID: "abc"},
			expectedSource: domain.SourceRemote,
		},
		{
			name:           "garbage_token_stays_remote",
			session:        domain.Session{Token: "not-a-jwt", GuestID: "guest-1"},
			expectedSource: domain.SourceRemote,
			expectedError:  service.ErrDecode,
		},
		{
			name:           "token_without_user_id",
			session:        domain.Session{Token: signToken(t, jwt.MapClaims{"role": "customer"})},
			expectedSource: domain.SourceRemote,
			expectedError:  service.ErrDecode,
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			owner, err := svc.Resolve(testCase.session)
			assert.Equal(t, testCase.expectedSource, owner.Source)
			if testCase.expectedError != nil {
				assert.ErrorIs(t, err, testCase.expectedError)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, testCase.expectedOwner.ID, owner.ID)
			assert.Equal(t, testCase.session.Token, owner.Token)
		})
	}
}

func TestCartService_RemoteAdd(t *testing.T) {
	remote := mocks.NewCartStore(t)
	local := mocks.NewCartStore(t)
	notifier := mocks.NewNotifier(t)
	publisher := mocks.NewEventPublisher(t)
	svc := service.NewCartService(remote, local, notifier, publisher, "origin")

	ctx := context.Background()
	session := domain.Session{Token: signToken(t, jwt.MapClaims{"id": 5})}
	owner := domain.Owner{Source: domain.SourceRemote, ID: "5", Token: session.Token}
	dish := domain.Dish{ID: "11", Name: "Pho", Price: 100000}

	tests := []struct {
		name          string
		quantity      int
		prepareMocks  func()
		expectedError error
	}{
		{
			name:     "success",
			quantity: 2,
			prepareMocks: func() {
				remote.On("Add", ctx, owner, dish, 2).Return(nil).Once()
				publisher.On("Publish", isUpdateFor("user:5")).Once()
				notifier.On("Notify", ctx, isLevel(domain.LevelSuccess)).Once()
			},
		},
		{
			name:     "zero_quantity_defaults_to_one",
			quantity: 0,
			prepareMocks: func() {
				remote.On("Add", ctx, owner, dish, 1).Return(nil).Once()
				publisher.On("Publish", isUpdateFor("user:5")).Once()
				notifier.On("Notify", ctx, isLevel(domain.LevelSuccess)).Once()
			},
		},
		{
			name:     "network_failure",
			quantity: 1,
			prepareMocks: func() {
				remote.On("Add", ctx, owner, dish, 1).Return(fmt.Errorf("%w: timeout", service.ErrNetwork)).Once()
				notifier.On("Notify", ctx, isLevel(domain.LevelError)).Once()
			},
			expectedError: service.ErrNetwork,
		},
		{
			name:     "backend_rejects",
			quantity: 1,
			prepareMocks: func() {
				remote.On("Add", ctx, owner, dish, 1).Return(fmt.Errorf("%w: dish unavailable", service.ErrRejected)).Once()
				notifier.On("Notify", ctx, isLevel(domain.LevelError)).Once()
			},
			expectedError: service.ErrRejected,
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			testCase.prepareMocks()
			err := svc.Add(ctx, session, dish, testCase.quantity)
			if testCase.expectedError != nil {
				assert.ErrorIs(t, err, testCase.expectedError)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCartService_AddWithUndecodableToken(t *testing.T) {
	remote := mocks.NewCartStore(t)
	local := mocks.NewCartStore(t)
	notifier := mocks.NewNotifier(t)
	publisher := mocks.NewEventPublisher(t)
	svc := service.NewCartService(remote, local, notifier, publisher, "origin")

	ctx := context.Background()
	notifier.On("Notify", ctx, isLevel(domain.LevelError)).Once()

	err := svc.Add(ctx, domain.Session{Token: "broken", GuestID: "g"}, domain.Dish{ID: "1", Name: "Pho"}, 1)
	assert.ErrorIs(t, err, service.ErrDecode)
	remote.AssertNotCalled(t, "Add", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	local.AssertNotCalled(t, "Add", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCartService_UndecodableTokenNoticesStayWithTheirToken(t *testing.T) {
	center := notify.NewCenter(time.Minute)
	svc := service.NewCartService(mocks.NewCartStore(t), mocks.NewCartStore(t), center, nil, "origin")
	ctx := context.Background()

	err := svc.Add(ctx, domain.Session{Token: "broken-a"}, domain.Dish{ID: "1", Name: "Pho"}, 1)
	require.ErrorIs(t, err, service.ErrDecode)

	other, _ := svc.Resolve(domain.Session{Token: "broken-b"})
	assert.Empty(t, center.Drain(other.Key()))
	assert.Empty(t, center.Drain("user:"))

	owner, _ := svc.Resolve(domain.Session{Token: "broken-a"})
	notes := center.Drain(owner.Key())
	require.Len(t, notes, 1)
	assert.Equal(t, domain.LevelError, notes[0].Level)
}

func TestCartService_RemoteUpdateQuantity(t *testing.T) {
	remote := mocks.NewCartStore(t)
	notifier := mocks.NewNotifier(t)
	publisher := mocks.NewEventPublisher(t)
	svc := service.NewCartService(remote, nil, notifier, publisher, "origin")

	ctx := context.Background()
	session := domain.Session{Token: signToken(t, jwt.MapClaims{"id": 5})}
	owner := domain.Owner{Source: domain.SourceRemote, ID: "5", Token: session.Token}
	lines := []domain.CartLine{
		{ID: "c1", DishID: "11", Name: "Pho", Price: 100000, Quantity: 1},
		{ID: "c2", DishID: "12", Name: "Banh mi", Price: 30000, Quantity: 3},
	}

	tests := []struct {
		name             string
		lineID           string
		direction        domain.Direction
		prepareMocks     func()
		expectedQuantity int
		expectedError    error
	}{
		{
			name:      "decrease_at_one_is_ignored",
			lineID:    "c1",
			direction: domain.DirectionDecrease,
			prepareMocks: func() {
				remote.On("Load", ctx, owner).Return(lines, nil).Once()
			},
			expectedQuantity: 1,
		},
		{
			name:      "increase",
			lineID:    "c1",
			direction: domain.DirectionIncrease,
			prepareMocks: func() {
				remote.On("Load", ctx, owner).Return(lines, nil).Once()
				remote.On("SetQuantity", ctx, owner, "c1", domain.DirectionIncrease).Return(nil).Once()
				publisher.On("Publish", isUpdateFor("user:5")).Once()
			},
			expectedQuantity: 2,
		},
		{
			name:      "decrease",
			lineID:    "c2",
			direction: domain.DirectionDecrease,
			prepareMocks: func() {
				remote.On("Load", ctx, owner).Return(lines, nil).Once()
				remote.On("SetQuantity", ctx, owner, "c2", domain.DirectionDecrease).Return(nil).Once()
				publisher.On("Publish", isUpdateFor("user:5")).Once()
			},
			expectedQuantity: 2,
		},
		{
			name:      "failure_keeps_confirmed_quantity",
			lineID:    "c2",
			direction: domain.DirectionIncrease,
			prepareMocks: func() {
				remote.On("Load", ctx, owner).Return(lines, nil).Once()
				remote.On("SetQuantity", ctx, owner, "c2", domain.DirectionIncrease).Return(fmt.Errorf("%w: 500", service.ErrNetwork)).Once()
				notifier.On("Notify", ctx, isLevel(domain.LevelError)).Once()
			},
			expectedQuantity: 3,
			expectedError:    service.ErrNetwork,
		},
		{
			name:      "unknown_line",
			lineID:    "missing",
			direction: domain.DirectionIncrease,
			prepareMocks: func() {
				remote.On("Load", ctx, owner).Return(lines, nil).Once()
			},
			expectedError: service.ErrLineNotFound,
		},
		{
			name:      "load_failure",
			lineID:    "c1",
			direction: domain.DirectionIncrease,
			prepareMocks: func() {
				remote.On("Load", ctx, owner).Return(nil, fmt.Errorf("%w: refused", service.ErrNetwork)).Once()
				notifier.On("Notify", ctx, isLevel(domain.LevelError)).Once()
			},
			expectedError: service.ErrNetwork,
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			testCase.prepareMocks()
			line, err := svc.UpdateQuantity(ctx, session, testCase.lineID, testCase.direction)
			if testCase.expectedError != nil {
				assert.ErrorIs(t, err, testCase.expectedError)
			} else {
				assert.NoError(t, err)
			}
			if testCase.expectedQuantity > 0 {
				assert.Equal(t, testCase.expectedQuantity, line.Quantity)
			}
		})
	}
}

func TestCartService_RemoteRemove(t *testing.T) {
	remote := mocks.NewCartStore(t)
	notifier := mocks.NewNotifier(t)
	publisher := mocks.NewEventPublisher(t)
	svc := service.NewCartService(remote, nil, notifier, publisher, "origin")

	ctx := context.Background()
	session := domain.Session{Token: signToken(t, jwt.MapClaims{"id": 5})}
	owner := domain.Owner{Source: domain.SourceRemote, ID: "5", Token: session.Token}
	lines := []domain.CartLine{{ID: "c1", DishID: "11", Name: "Pho", Price: 100000, Quantity: 1}}

	tests := []struct {
		name          string
		lineID        string
		prepareMocks  func()
		expectedError error
	}{
		{
			name:   "success",
			lineID: "c1",
			prepareMocks: func() {
				remote.On("Load", ctx, owner).Return(lines, nil).Once()
				remote.On("Remove", ctx, owner, "c1").Return(nil).Once()
				publisher.On("Publish", isUpdateFor("user:5")).Once()
			},
		},
		{
			name:   "missing_line_is_noop",
			lineID: "nope",
			prepareMocks: func() {
				remote.On("Load", ctx, owner).Return(lines, nil).Once()
			},
		},
		{
			name:   "failure",
			lineID: "c1",
			prepareMocks: func() {
				remote.On("Load", ctx, owner).Return(lines, nil).Once()
				remote.On("Remove", ctx, owner, "c1").Return(fmt.Errorf("%w: 503", service.ErrNetwork)).Once()
				notifier.On("Notify", ctx, isLevel(domain.LevelError)).Once()
			},
			expectedError: service.ErrNetwork,
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			testCase.prepareMocks()
			err := svc.Remove(ctx, session, testCase.lineID)
			if testCase.expectedError != nil {
				assert.ErrorIs(t, err, testCase.expectedError)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCartService_RemoteLoadFailureIsEmpty(t *testing.T) {
	remote := mocks.NewCartStore(t)
	svc := service.NewCartService(remote, nil, nil, nil, "origin")

	ctx := context.Background()
	session := domain.Session{Token: signToken(t, jwt.MapClaims{"id": 5})}
	remote.On("Load", ctx, mock.Anything).Return(nil, errors.New("connection refused")).Once()

	view := svc.Load(ctx, session)
	assert.Equal(t, domain.SourceRemote, view.Source)
	assert.Empty(t, view.Lines)
	assert.Equal(t, 0, view.Count)
	assert.Equal(t, float64(0), view.Total)
}

func TestCartService_RemoteAddFailureLeavesCartUnchanged(t *testing.T) {
	remote := mocks.NewCartStore(t)
	center := notify.NewCenter(time.Minute)
	svc := service.NewCartService(remote, nil, center, events.NewBus(), "origin")

	ctx := context.Background()
	session := domain.Session{Token: signToken(t, jwt.MapClaims{"id": 9})}
	existing := []domain.CartLine{{ID: "c1", DishID: "1", Name: "Pho", Price: 100000, Quantity: 1}}

	remote.On("Load", ctx, mock.Anything).Return(existing, nil).Twice()
	remote.On("Add", ctx, mock.Anything, mock.Anything, 1).Return(fmt.Errorf("%w: 502", service.ErrNetwork)).Once()

	before := svc.Load(ctx, session)
	err := svc.Add(ctx, session, domain.Dish{ID: "2", Name: "Bun cha", Price: 50000}, 1)
	after := svc.Load(ctx, session)

	assert.ErrorIs(t, err, service.ErrNetwork)
	assert.Len(t, after.Lines, len(before.Lines))

	notes := center.Drain("user:9")
	require.Len(t, notes, 1)
	assert.Equal(t, domain.LevelError, notes[0].Level)
}

func TestCartService_LocalAddTwiceMerges(t *testing.T) {
	svc, bus, center, _ := newLocalCart(t)
	ctx := context.Background()
	session := domain.Session{GuestID: "browser-1"}
	dishA := domain.Dish{ID: "A", Name: "Pho", Price: 100000}

	updates, cancel := bus.Subscribe(4)
	defer cancel()

	require.NoError(t, svc.Add(ctx, session, dishA, 1))
	require.NoError(t, svc.Add(ctx, session, dishA, 1))

	view := svc.Load(ctx, session)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, 2, view.Lines[0].Quantity)
	assert.True(t, view.Lines[0].Available)
	assert.Equal(t, float64(200000), view.Total)
	assert.Equal(t, "200.000 ₫", view.FormattedTotal)
	assert.Equal(t, domain.SourceLocal, view.Source)

	assert.Len(t, updates, 2)
	evt := <-updates
	assert.Equal(t, domain.EventCartUpdated, evt.Kind)
	assert.Equal(t, "guest:browser-1", evt.Owner)

	notes := center.Drain("guest:browser-1")
	require.Len(t, notes, 2)
	assert.Equal(t, domain.LevelSuccess, notes[0].Level)
}

func TestCartService_LocalDecreaseAtOneIsIgnored(t *testing.T) {
	svc, bus, _, _ := newLocalCart(t)
	ctx := context.Background()
	session := domain.Session{GuestID: "browser-2"}

	require.NoError(t, svc.Add(ctx, session, domain.Dish{ID: "A", Name: "Pho", Price: 100000}, 1))

	updates, cancel := bus.Subscribe(4)
	defer cancel()

	line, err := svc.UpdateQuantity(ctx, session, "A", domain.DirectionDecrease)
	require.NoError(t, err)
	assert.Equal(t, 1, line.Quantity)
	assert.Len(t, updates, 0)

	view := svc.Load(ctx, session)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, 1, view.Lines[0].Quantity)
}

func TestCartService_LocalUpdateAndRemove(t *testing.T) {
	svc, _, _, _ := newLocalCart(t)
	ctx := context.Background()
	session := domain.Session{GuestID: "browser-3"}

	require.NoError(t, svc.Add(ctx, session, domain.Dish{ID: "A", Name: "Pho", Price: 100000}, 1))
	require.NoError(t, svc.Add(ctx, session, domain.Dish{ID: "B", Name: "Banh mi", Price: 25000}, 2))

	line, err := svc.UpdateQuantity(ctx, session, "B", domain.DirectionIncrease)
	require.NoError(t, err)
	assert.Equal(t, 3, line.Quantity)

	line, err = svc.UpdateQuantity(ctx, session, "B", domain.DirectionDecrease)
	require.NoError(t, err)
	assert.Equal(t, 2, line.Quantity)

	_, err = svc.UpdateQuantity(ctx, session, "Z", domain.DirectionIncrease)
	assert.ErrorIs(t, err, service.ErrLineNotFound)

	require.NoError(t, svc.Remove(ctx, session, "does-not-exist"))
	view := svc.Load(ctx, session)
	assert.Len(t, view.Lines, 2)
	assert.Equal(t, float64(150000), view.Total)

	require.NoError(t, svc.Remove(ctx, session, "A"))
	view = svc.Load(ctx, session)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, "B", view.Lines[0].ID)
	assert.Equal(t, 2, view.Count)
}

func TestCartService_LocalCartsAreScopedPerBrowser(t *testing.T) {
	svc, _, _, _ := newLocalCart(t)
	ctx := context.Background()

	require.NoError(t, svc.Add(ctx, domain.Session{GuestID: "one"}, domain.Dish{ID: "A", Name: "Pho", Price: 1}, 1))

	assert.Len(t, svc.Load(ctx, domain.Session{GuestID: "one"}).Lines, 1)
	assert.Empty(t, svc.Load(ctx, domain.Session{GuestID: "two"}).Lines)
}

func TestCartService_LocalConcurrentAddsAreNotLost(t *testing.T) {
	svc, _, center, _ := newLocalCart(t)
	ctx := context.Background()
	session := domain.Session{GuestID: "browser-5"}
	dish := domain.Dish{ID: "A", Name: "Pho", Price: 100000}

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- svc.Add(ctx, session, dish, 1)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	view := svc.Load(ctx, session)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, 20, view.Lines[0].Quantity)
	assert.Equal(t, float64(2000000), view.Total)
	assert.Len(t, center.Drain("guest:browser-5"), 20)
}

func TestCartService_LocalCorruptEntryLoadsEmpty(t *testing.T) {
	svc, _, _, mr := newLocalCart(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("storage:browser-4:cart", "{not json"))

	view := svc.Load(ctx, domain.Session{GuestID: "browser-4"})
	assert.Empty(t, view.Lines)

	require.NoError(t, svc.Add(ctx, domain.Session{GuestID: "browser-4"}, domain.Dish{ID: "A", Name: "Pho", Price: 10}, 1))
	assert.Len(t, svc.Load(ctx, domain.Session{GuestID: "browser-4"}).Lines, 1)
}

func TestCartService_LocalAddSequenceProperty(t *testing.T) {
	svc, _, _, _ := newLocalCart(t)
	ctx := context.Background()
	session := domain.Session{GuestID: "browser-5"}
	rng := rand.New(rand.NewSource(7))

	dishIDs := []string{"A", "B", "C", "D", "E"}
	expected := map[string]int{}
	for i := 0; i < 40; i++ {
		id := dishIDs[rng.Intn(len(dishIDs))]
		expected[id]++
		require.NoError(t, svc.Add(ctx, session, domain.Dish{ID: id, Name: "Dish " + id, Price: 1000}, 1))
	}

	view := svc.Load(ctx, session)
	assert.Len(t, view.Lines, len(expected))
	for _, line := range view.Lines {
		assert.Equal(t, expected[line.DishID], line.Quantity, "dish %s", line.DishID)
	}
	assert.Equal(t, 40, view.Count)
	assert.Equal(t, float64(40000), view.Total)
}

func TestCartService_LocalSourceIgnoresRemoteStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	remote := mocks.NewCartStore(t)
	local := storage.NewLocalStore(storage.NewRedisKV(client, time.Hour))
	svc := service.NewCartService(remote, local, nil, nil, "origin")

	ctx := context.Background()
	session := domain.Session{GuestID: "browser-6"}
	require.NoError(t, svc.Add(ctx, session, domain.Dish{ID: "A", Name: "Pho", Price: 5}, 1))
	assert.Len(t, svc.Load(ctx, session).Lines, 1)

	remote.AssertNotCalled(t, "Load", mock.Anything, mock.Anything)
	remote.AssertNotCalled(t, "Add", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
