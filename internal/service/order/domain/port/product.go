package port

import (
	"context"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID            int64
	Name          string
	SKU           string
	Price         decimal.Decimal
	DiscountPrice decimal.Decimal
	Images        []ProductImage
}

type ProductImage struct {
	URL       string
	IsPrimary bool
}

// PrimaryImageURL 优先取主图，没有主图取第一张，没有图片返回空串
func (p *Product) PrimaryImageURL() string {
	for _, img := range p.Images {
		if img.IsPrimary {
			return img.URL
		}
	}
	if len(p.Images) > 0 {
		return p.Images[0].URL
	}
	return ""
}

// ProductCatalog 是商品服务的出站端口。
type ProductCatalog interface {
	GetProduct(ctx context.Context, productID int64) (*Product, error)
}
