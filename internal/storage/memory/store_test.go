package memory

import (
	"testing"

	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/storage"
	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/storage/storagetest"
)

func TestProductStore(t *testing.T) {
	storagetest.RunProductStore(t, func(*testing.T) storage.ProductStore { return NewProductStore() })
}

func TestOrderStore(t *testing.T) {
	storagetest.RunOrderStore(t, func(*testing.T) storage.OrderStore { return NewOrderStore() })
}
