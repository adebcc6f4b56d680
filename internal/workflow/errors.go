package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Sivellexfc/paket-pilot/internal/archive"
	"github.com/Sivellexfc/paket-pilot/internal/columns"
	"github.com/Sivellexfc/paket-pilot/internal/integrations"
	"github.com/Sivellexfc/paket-pilot/internal/reconcile"
	"github.com/Sivellexfc/paket-pilot/internal/table"
)

var (
	ErrNoStore          = errors.New("workflow: no store selected")
	ErrNotPreparing     = errors.New("workflow: no preparation in progress")
	ErrAlreadyPreparing = errors.New("workflow: preparation already in progress")
	ErrShipmentBlocked  = errors.New("workflow: shipment blocked")
	ErrTargetEmpty      = errors.New("workflow: target table has no data rows")
	ErrNoMarketplace    = errors.New("workflow: no marketplace configured")
	ErrNoCredentials    = errors.New("workflow: store has no API credentials")
)

// UserMessage zamienia błąd na jedno zdanie dla operatora (po turecku, jak UI).
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var (
		mismatch *reconcile.MismatchError
		missing  *columns.MissingColumnError
		fetch    *integrations.FetchError
	)
	switch {
	case errors.As(err, &mismatch):
		return "Sayım eşleşmiyor, kargoya verilemez. Hatalı barkodlar: " + strings.Join(mismatch.Barcodes(), ", ")
	case errors.As(err, &missing):
		msg := fmt.Sprintf("'%s' sütunu bulunamadı.", missing.Role.Label())
		if missing.Closest != "" {
			msg += fmt.Sprintf(" Bunu mu demek istediniz: '%s'?", missing.Closest)
		}
		return msg
	case errors.As(err, &fetch):
		if fetch.Status == 401 || fetch.Status == 403 {
			return fmt.Sprintf("API yetkilendirme hatası (%d). Mağaza API bilgilerini kontrol edin.", fetch.Status)
		}
		return fmt.Sprintf("API hatası: %d", fetch.Status)
	case errors.Is(err, ErrShipmentBlocked):
		return "Sayım eşleşmiyor, kargoya verilemez."
	case errors.Is(err, ErrNoStore):
		return "Lütfen önce bir mağaza seçin."
	case errors.Is(err, ErrNotPreparing):
		return "Hazırlık başlatılmadı."
	case errors.Is(err, ErrAlreadyPreparing):
		return "Hazırlık zaten devam ediyor."
	case errors.Is(err, ErrTargetEmpty):
		return "Hedef tablo boş. Kargoya vermek için en az bir satır gerekli."
	case errors.Is(err, ErrNoMarketplace):
		return "Pazaryeri entegrasyonu yapılandırılmamış."
	case errors.Is(err, ErrNoCredentials):
		return "Bu mağaza için API bilgileri eksik."
	case errors.Is(err, archive.ErrDuplicateKey):
		return "Arşiv kaydı aynı anda güncellendi, lütfen tekrar deneyin."
	case errors.Is(err, archive.ErrNotFound):
		return "Arşiv kaydı bulunamadı."
	case errors.Is(err, table.ErrMalformed):
		return "Tablo biçimi geçersiz."
	case errors.Is(err, context.DeadlineExceeded):
		return "İstek zaman aşımına uğradı."
	case errors.Is(err, context.Canceled):
		return "İşlem iptal edildi."
	}

	msg := err.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	return "İşlem başarısız: " + msg
}
