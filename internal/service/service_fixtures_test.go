package service

import (
	"context"
	"errors"
	"time"

	"lingua-exchange-be/internal/config"
	"lingua-exchange-be/internal/entity"
	"lingua-exchange-be/internal/repository/contract"
	"lingua-exchange-be/internal/repository/specification"
	"lingua-exchange-be/internal/repository/unitofwork"
	"lingua-exchange-be/pkg/iap"

	"github.com/google/uuid"
)

// nopLogger keeps test output quiet.
type nopLogger struct{}

func (nopLogger) Debug(string, string, map[string]interface{}) {}
func (nopLogger) Info(string, string, map[string]interface{})  {}
func (nopLogger) Warn(string, string, map[string]interface{})  {}
func (nopLogger) Error(string, string, map[string]interface{}) {}
func (nopLogger) Sync() error                                  { return nil }

// memoryStore is the shared backing state for the fake repositories.
type memoryStore struct {
	users   map[uuid.UUID]*entity.User
	subs    map[uuid.UUID]*entity.VipSubscription
	txns    map[uuid.UUID][]*entity.VipTransaction
	commits int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users: make(map[uuid.UUID]*entity.User),
		subs:  make(map[uuid.UUID]*entity.VipSubscription),
		txns:  make(map[uuid.UUID][]*entity.VipTransaction),
	}
}

func (s *memoryStore) addUser(u *entity.User) {
	s.users[u.Id] = u
}

func (s *memoryStore) addSubscription(sub *entity.VipSubscription) {
	s.subs[sub.Id] = sub
}

func (s *memoryStore) addTransaction(subId uuid.UUID, txn *entity.VipTransaction) {
	s.txns[subId] = append(s.txns[subId], txn)
}

type fakeFactory struct {
	store *memoryStore
}

func (f *fakeFactory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return &fakeUow{store: f.store}
}

type fakeUow struct {
	store *memoryStore
	inTx  bool
}

func (u *fakeUow) Begin(ctx context.Context) error {
	if u.inTx {
		return errors.New("transaction already started")
	}
	u.inTx = true
	return nil
}

func (u *fakeUow) Commit() error {
	if !u.inTx {
		return errors.New("no transaction to commit")
	}
	u.inTx = false
	u.store.commits++
	return nil
}

func (u *fakeUow) Rollback() error {
	u.inTx = false
	return nil
}

func (u *fakeUow) UserRepository() contract.UserRepository {
	return &fakeUserRepo{store: u.store}
}

func (u *fakeUow) VipRepository() contract.VipRepository {
	return &fakeVipRepo{store: u.store}
}

type fakeUserRepo struct {
	store *memoryStore
}

func (r *fakeUserRepo) Create(ctx context.Context, user *entity.User) error {
	r.store.users[user.Id] = user
	return nil
}

func (r *fakeUserRepo) Update(ctx context.Context, user *entity.User) error {
	r.store.users[user.Id] = user
	return nil
}

func (r *fakeUserRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.User, error) {
	for _, spec := range specs {
		if byId, ok := spec.(specification.ByID); ok {
			return r.store.users[byId.ID], nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.User, error) {
	var out []*entity.User
	for _, u := range r.store.users {
		out = append(out, u)
	}
	return out, nil
}

func (r *fakeUserRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	return int64(len(r.store.users)), nil
}

func (r *fakeUserRepo) FindByTransactionId(ctx context.Context, transactionId string) (*entity.User, error) {
	for subId, txns := range r.store.txns {
		for _, txn := range txns {
			if txn.TransactionId != transactionId && txn.OriginalTransactionId != transactionId {
				continue
			}
			sub, ok := r.store.subs[subId]
			if !ok {
				return nil, nil
			}
			return r.store.users[sub.UserId], nil
		}
	}
	return nil, nil
}

type fakeVipRepo struct {
	store *memoryStore
}

func (r *fakeVipRepo) CreateSubscription(ctx context.Context, sub *entity.VipSubscription) error {
	r.store.subs[sub.Id] = sub
	return nil
}

func (r *fakeVipRepo) UpdateSubscription(ctx context.Context, sub *entity.VipSubscription) error {
	r.store.subs[sub.Id] = sub
	return nil
}

func (r *fakeVipRepo) FindOneSubscription(ctx context.Context, specs ...specification.Specification) (*entity.VipSubscription, error) {
	for _, spec := range specs {
		switch s := spec.(type) {
		case specification.ByID:
			return r.store.subs[s.ID], nil
		case specification.ByUserID:
			for _, sub := range r.store.subs {
				if sub.UserId == s.UserID {
					return sub, nil
				}
			}
			return nil, nil
		}
	}
	return nil, nil
}

func (r *fakeVipRepo) FindAllSubscriptions(ctx context.Context, specs ...specification.Specification) ([]*entity.VipSubscription, error) {
	var out []*entity.VipSubscription
	for _, sub := range r.store.subs {
		if matchesSubscriptionSpecs(sub, specs) {
			out = append(out, sub)
		}
	}
	return out, nil
}

func matchesSubscriptionSpecs(sub *entity.VipSubscription, specs []specification.Specification) bool {
	for _, spec := range specs {
		switch s := spec.(type) {
		case specification.ActiveExpiredBefore:
			if !sub.IsActive || sub.EndDate == nil || !sub.EndDate.Before(s.Now) {
				return false
			}
		case specification.ActiveExpiringBetween:
			if !sub.IsActive || sub.EndDate == nil || sub.EndDate.Before(s.From) || !sub.EndDate.Before(s.To) {
				return false
			}
		case specification.ByUserID:
			if sub.UserId != s.UserID {
				return false
			}
		}
	}
	return true
}

func (r *fakeVipRepo) AppendTransaction(ctx context.Context, subscriptionId uuid.UUID, txn *entity.VipTransaction) (bool, error) {
	if _, ok := r.store.subs[subscriptionId]; !ok {
		return false, errors.New("subscription not found")
	}
	for _, existing := range r.store.txns[subscriptionId] {
		if existing.TransactionId == txn.TransactionId {
			return false, nil
		}
	}
	r.store.txns[subscriptionId] = append(r.store.txns[subscriptionId], txn)
	return true, nil
}

func (r *fakeVipRepo) ListTransactions(ctx context.Context, subscriptionId uuid.UUID) ([]*entity.VipTransaction, error) {
	return r.store.txns[subscriptionId], nil
}

// fakeVerifier returns a canned purchase or error.
type fakeVerifier struct {
	platform string
	purchase *iap.VerifiedPurchase
	err      error
}

func (v *fakeVerifier) Platform() string {
	return v.platform
}

func (v *fakeVerifier) Verify(ctx context.Context, proof string, hint iap.Hint) (*iap.VerifiedPurchase, error) {
	if v.err != nil {
		return nil, v.err
	}
	return v.purchase, nil
}

func testVipConfig() *config.VipConfig {
	return &config.VipConfig{
		GracePeriodHours:    24,
		WarningDayOffsets:   []int{7, 3, 1},
		MonthlyProductIds:   []string{"vip_monthly"},
		QuarterlyProductIds: []string{"vip_quarterly"},
		YearlyProductIds:    []string{"vip_yearly"},
	}
}

func newTestVipService(store *memoryStore, verifiers ...iap.Verifier) *vipService {
	svc := NewVipService(&fakeFactory{store: store}, verifiers, nil, nopLogger{}, testVipConfig())
	return svc.(*vipService)
}

func frozenTime(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
