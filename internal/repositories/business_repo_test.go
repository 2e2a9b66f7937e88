package repositories

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type BusinessRepoTestSuite struct {
	suite.Suite
	mock       pgxmock.PgxPoolIface
	repo       BusinessRepository
	businessID uuid.UUID
	now        time.Time
	context    context.Context
}

func (suite *BusinessRepoTestSuite) SetupTest() {
	mock, err := pgxmock.NewPool()
	assert.NoError(suite.T(), err)
	suite.mock = mock

	suite.repo = NewBusinessRepo(mock)
	suite.businessID = uuid.New()
	suite.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	suite.context = context.Background()
}

func (suite *BusinessRepoTestSuite) TearDownTest() {
	assert.NoError(suite.T(), suite.mock.ExpectationsWereMet())
	suite.mock.Close()
}

func TestBusinessRepoTestSuite(t *testing.T) {
	suite.Run(t, new(BusinessRepoTestSuite))
}

func (suite *BusinessRepoTestSuite) TestGetByID_Success() {
	trialEnd := suite.now.AddDate(0, 0, 10)
	customer := "cus_123"

	suite.mock.ExpectQuery(regexp.QuoteMeta(getBusinessByIDQuery)).
		WithArgs(suite.businessID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "trial_end", "subscription_active", "subscription_start_date", "subscription_end_date", "stripe_customer_id", "created_at", "updated_at"}).
			AddRow(suite.businessID, "Corner Shop", &trialEnd, false, nil, nil, &customer, suite.now, suite.now))

	business, err := suite.repo.GetByID(suite.context, suite.businessID)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), suite.businessID, business.ID)
	assert.Equal(suite.T(), "Corner Shop", business.Name)
	assert.Equal(suite.T(), trialEnd, *business.TrialEnd)
	assert.False(suite.T(), business.SubscriptionActive)
	assert.Equal(suite.T(), "cus_123", *business.StripeCustomerID)
}

func (suite *BusinessRepoTestSuite) TestGetByID_NotFound() {
	suite.mock.ExpectQuery(regexp.QuoteMeta(getBusinessByIDQuery)).
		WithArgs(suite.businessID).
		WillReturnError(pgx.ErrNoRows)

	business, err := suite.repo.GetByID(suite.context, suite.businessID)
	assert.ErrorIs(suite.T(), err, pgx.ErrNoRows)
	assert.Nil(suite.T(), business)
}

func (suite *BusinessRepoTestSuite) TestEnsureTrialEnd_FirstCallerStoresCandidate() {
	candidate := suite.now.AddDate(0, 0, 30)

	suite.mock.ExpectQuery(regexp.QuoteMeta(ensureTrialEndQuery)).
		WithArgs(suite.businessID, candidate).
		WillReturnRows(pgxmock.NewRows([]string{"trial_end"}).AddRow(candidate))

	trialEnd, err := suite.repo.EnsureTrialEnd(suite.context, suite.businessID, candidate)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), candidate, trialEnd)
}

func (suite *BusinessRepoTestSuite) TestEnsureTrialEnd_LoserReadsStoredValue() {
	candidate := suite.now.AddDate(0, 0, 30)
	stored := suite.now.AddDate(0, 0, 29)

	suite.mock.ExpectQuery(regexp.QuoteMeta(ensureTrialEndQuery)).
		WithArgs(suite.businessID, candidate).
		WillReturnError(pgx.ErrNoRows)
	suite.mock.ExpectQuery(regexp.QuoteMeta(getTrialEndQuery)).
		WithArgs(suite.businessID).
		WillReturnRows(pgxmock.NewRows([]string{"trial_end"}).AddRow(&stored))

	trialEnd, err := suite.repo.EnsureTrialEnd(suite.context, suite.businessID, candidate)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), stored, trialEnd)
}

func (suite *BusinessRepoTestSuite) TestEnsureTrialEnd_DatabaseError() {
	candidate := suite.now.AddDate(0, 0, 30)

	suite.mock.ExpectQuery(regexp.QuoteMeta(ensureTrialEndQuery)).
		WithArgs(suite.businessID, candidate).
		WillReturnError(errors.New("database connection failed"))

	_, err := suite.repo.EnsureTrialEnd(suite.context, suite.businessID, candidate)
	assert.Error(suite.T(), err)
	assert.Contains(suite.T(), err.Error(), "database connection failed")
}

func (suite *BusinessRepoTestSuite) TestExpireSubscription() {
	suite.mock.ExpectExec(regexp.QuoteMeta(expireSubscriptionQuery)).
		WithArgs(suite.businessID, suite.now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	expired, err := suite.repo.ExpireSubscription(suite.context, suite.businessID, suite.now)
	assert.NoError(suite.T(), err)
	assert.True(suite.T(), expired)
}

func (suite *BusinessRepoTestSuite) TestExpireLapsed() {
	other := uuid.New()
	suite.mock.ExpectQuery(regexp.QuoteMeta(expireLapsedQuery)).
		WithArgs(suite.now).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(suite.businessID).AddRow(other))

	ids, err := suite.repo.ExpireLapsed(suite.context, suite.now)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), []uuid.UUID{suite.businessID, other}, ids)
}

func (suite *BusinessRepoTestSuite) TestActivate_ResetFromNow() {
	end := suite.now.AddDate(0, 0, 30)
	suite.mock.ExpectQuery(regexp.QuoteMeta(activateResetQuery)).
		WithArgs(suite.businessID, suite.now, 30).
		WillReturnRows(pgxmock.NewRows([]string{"subscription_start_date", "subscription_end_date"}).AddRow(suite.now, end))

	window, err := suite.repo.Activate(suite.context, suite.businessID, suite.now, 30, false)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), suite.now, window.StartDate)
	assert.Equal(suite.T(), end, window.EndDate)
}

func (suite *BusinessRepoTestSuite) TestActivate_ExtendFromEndUsesExtendQuery() {
	start := suite.now.AddDate(0, 0, -20)
	end := suite.now.AddDate(0, 0, 40)
	suite.mock.ExpectQuery(regexp.QuoteMeta(activateExtendQuery)).
		WithArgs(suite.businessID, suite.now, 30).
		WillReturnRows(pgxmock.NewRows([]string{"subscription_start_date", "subscription_end_date"}).AddRow(start, end))

	window, err := suite.repo.Activate(suite.context, suite.businessID, suite.now, 30, true)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), start, window.StartDate)
	assert.Equal(suite.T(), end, window.EndDate)
}

func (suite *BusinessRepoTestSuite) TestDeactivate_ClosesWindow() {
	suite.mock.ExpectExec(regexp.QuoteMeta(deactivateQuery)).
		WithArgs(suite.businessID, &suite.now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	ok, err := suite.repo.Deactivate(suite.context, suite.businessID, &suite.now)
	assert.NoError(suite.T(), err)
	assert.True(suite.T(), ok)
}

func (suite *BusinessRepoTestSuite) TestDeactivate_UnknownBusiness() {
	suite.mock.ExpectExec(regexp.QuoteMeta(deactivateQuery)).
		WithArgs(suite.businessID, (*time.Time)(nil)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ok, err := suite.repo.Deactivate(suite.context, suite.businessID, nil)
	assert.NoError(suite.T(), err)
	assert.False(suite.T(), ok)
}
