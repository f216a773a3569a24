package storage

import (
	"hostpilot-server/models"
	"log"
	"os"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func connectToDB() *gorm.DB {
	// Only load .env in development (when RENDER env var is not set)
	if os.Getenv("RENDER") == "" {
		err := godotenv.Load()
		if err != nil {
			log.Println("Warning: Could not load .env file (this is normal in production)")
		}
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Panic("DB_CONNECTION_STRING environment variable is required")
	}

	db, dbError := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if dbError != nil {
		log.Panic("error connection to db: " + dbError.Error())
	}

	DB = db
	return db
}

// Migrate runs AutoMigrate for every model. Split out so tests can run the
// same migrations against their own database.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Organization{},
		&models.Variable{},
		&models.ChannelCredential{},
		&models.Number{},
		&models.ChannelAccount{},
		&models.ForwardingEmail{},
		&models.User{},
		&models.Property{},
		&models.ExternalListing{},
		&models.ExternalCalendar{},
		&models.Reservation{},
		&models.ReservationFee{},
		&models.Template{},
		&models.ReservationAutomation{},
		&models.ReservationMessage{},
		&models.Conversation{}, // create table containing many side first
		&models.Message{},
		&models.ParseEmailTask{},
		&models.Vendor{},
		&models.Job{},
		&models.WorkLog{},
		&models.Report{},
		&models.Notification{},
		&models.AuditLog{},
	)
}

func InitializeDB() *gorm.DB {
	db := connectToDB()
	if err := Migrate(db); err != nil {
		log.Panic("error running migrations: " + err.Error())
	}
	return db
}
