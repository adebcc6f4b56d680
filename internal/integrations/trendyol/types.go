// internal/integrations/trendyol/types.go
package trendyol

import "encoding/json"

// ordersPage – odpowiedź GET /suppliers/{id}/orders.
type ordersPage struct {
	Page          int            `json:"page"`
	Size          int            `json:"size"`
	TotalPages    int            `json:"totalPages"`
	TotalElements int            `json:"totalElements"`
	Content       []orderPackage `json:"content"`
}

// orderPackage – paczka (shipment package); jedno zamówienie może mieć kilka.
type orderPackage struct {
	ID                  int64       `json:"id"`
	OrderNumber         string      `json:"orderNumber"`
	Status              string      `json:"status"`
	CustomerFirstName   string      `json:"customerFirstName"`
	CustomerLastName    string      `json:"customerLastName"`
	OrderDate           int64       `json:"orderDate"`        // ms od epoki
	LastModifiedDate    int64       `json:"lastModifiedDate"` // ms od epoki
	CargoTrackingNumber json.Number `json:"cargoTrackingNumber"`
	ShipmentAddress     *address    `json:"shipmentAddress"`
	Lines               []orderLine `json:"lines"`
}

type address struct {
	City        string `json:"city"`
	FullAddress string `json:"fullAddress"`
}

type orderLine struct {
	ProductName string  `json:"productName"`
	Barcode     string  `json:"barcode"`
	MerchantSKU string  `json:"merchantSku"`
	Quantity    float64 `json:"quantity"`
	Amount      float64 `json:"amount"`
}

func (p orderPackage) customer() string {
	switch {
	case p.CustomerFirstName == "":
		return p.CustomerLastName
	case p.CustomerLastName == "":
		return p.CustomerFirstName
	}
	return p.CustomerFirstName + " " + p.CustomerLastName
}

func (p orderPackage) city() string {
	if p.ShipmentAddress == nil {
		return ""
	}
	return p.ShipmentAddress.City
}

func (p orderPackage) fullAddress() string {
	if p.ShipmentAddress == nil {
		return ""
	}
	return p.ShipmentAddress.FullAddress
}
