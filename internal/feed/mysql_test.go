package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockMySQLStore(t *testing.T) (*MySQLStore, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	gdb, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("gorm open: %v", err)
	}
	return NewMySQLStore(zerolog.Nop(), gdb, MySQLOptions{PollInterval: time.Millisecond}), mock
}

func feedRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "record", "updated_at"})
}

func TestMySQLStore_PollPushesOnlyChangedCollections(t *testing.T) {
	s, mock := newMockMySQLStore(t)
	now := time.Now()

	mock.ExpectQuery("SELECT \\* FROM `zones`").
		WillReturnRows(feedRows().AddRow("ZONE-A", []byte(`{"name":"Arrivals"}`), now))
	mock.ExpectQuery("SELECT \\* FROM `tracking`").
		WillReturnRows(feedRows().AddRow("TR-1", []byte(`{"battery":10,"zoneId":"ZONE-A"}`), now))

	snaps, err := s.poll(context.Background())
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if len(snaps) != 2 || snaps[0].Collection != Zones || snaps[1].Collection != Tracking {
		t.Fatalf("expected zones then tracking, got %+v", snaps)
	}
	if snaps[0].Records["ZONE-A"]["name"] != "Arrivals" {
		t.Fatalf("unexpected zone records %v", snaps[0].Records)
	}
	if snaps[1].Records["TR-1"]["battery"] != float64(10) {
		t.Fatalf("unexpected tracking records %v", snaps[1].Records)
	}

	mock.ExpectQuery("SELECT \\* FROM `zones`").
		WillReturnRows(feedRows().AddRow("ZONE-A", []byte(`{"name":"Arrivals"}`), now))
	mock.ExpectQuery("SELECT \\* FROM `tracking`").
		WillReturnRows(feedRows().AddRow("TR-1", []byte(`{"battery":9,"zoneId":"ZONE-A"}`), now))

	snaps, err = s.poll(context.Background())
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if len(snaps) != 1 || snaps[0].Collection != Tracking {
		t.Fatalf("expected only tracking to change, got %+v", snaps)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMySQLStore_PollUndecodableRecordBecomesEmpty(t *testing.T) {
	s, mock := newMockMySQLStore(t)
	mock.ExpectQuery("SELECT \\* FROM `zones`").WillReturnRows(feedRows())
	mock.ExpectQuery("SELECT \\* FROM `tracking`").
		WillReturnRows(feedRows().AddRow("TR-1", []byte(`not json`), time.Now()))

	snaps, err := s.poll(context.Background())
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	rec, ok := snaps[1].Records["TR-1"]
	if !ok || len(rec) != 0 {
		t.Fatalf("expected TR-1 with an empty record, got %v (present=%v)", rec, ok)
	}
}

func TestMySQLStore_PollError(t *testing.T) {
	s, mock := newMockMySQLStore(t)
	mock.ExpectQuery("SELECT \\* FROM `zones`").WillReturnError(errors.New("gone away"))

	if _, err := s.poll(context.Background()); err == nil {
		t.Fatalf("expected poll error")
	}
}

func TestMySQLStore_PutAsset(t *testing.T) {
	s, mock := newMockMySQLStore(t)
	mock.ExpectExec("INSERT INTO `tracking`").
		WithArgs("TR-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := s.PutAsset(context.Background(), "TR-1", Record{"battery": 100}); err != nil {
		t.Fatalf("put asset: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMySQLStore_DeleteZoneNotFound(t *testing.T) {
	s, mock := newMockMySQLStore(t)
	mock.ExpectExec("DELETE FROM `zones` WHERE").
		WithArgs("ZONE-X").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := s.DeleteZone(context.Background(), "ZONE-X"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMySQLStore_DeleteZoneCascade(t *testing.T) {
	s, mock := newMockMySQLStore(t)
	mock.ExpectExec("DELETE FROM `zones` WHERE").
		WithArgs("ZONE-A").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE `tracking` SET `record`=JSON_REMOVE").
		WillReturnResult(sqlmock.NewResult(0, 2))

	cleared, err := DeleteZoneCascade(context.Background(), s, "ZONE-A")
	if err != nil {
		t.Fatalf("cascade: %v", err)
	}
	if cleared != 2 {
		t.Fatalf("expected 2 cleared, got %d", cleared)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
