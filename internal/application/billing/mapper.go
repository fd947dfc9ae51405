package billing

import (
	"github.com/jhoicas/Facturacion-api/internal/application/dto"
	"github.com/jhoicas/Facturacion-api/internal/domain/entity"
)

const dateLayout = "2006-01-02"

func toDocumentResponse(doc *entity.Document) *dto.DocumentResponse {
	resp := &dto.DocumentResponse{
		ID:        doc.ID,
		CompanyID: doc.CompanyID,
		Type:      string(doc.Type),
		Status:    doc.Status,
		Client: dto.ClientResponse{
			ID:      doc.Client.ClientID,
			Name:    doc.Client.Name,
			TaxID:   doc.Client.TaxID,
			Address: doc.Client.Address,
		},
		Items:               make([]dto.LineItemResponse, 0, len(doc.Items)),
		Notes:               doc.Notes,
		Retention:           doc.Retention,
		Subtotal:            doc.Subtotal,
		Tax:                 doc.Tax,
		Withholding:         doc.Withholding,
		Total:               doc.Total,
		Series:              doc.Series,
		Sequence:            doc.Sequence,
		DisplayID:           doc.DisplayID,
		IUD:                 doc.IUD,
		IssuedAt:            doc.IssuedAt,
		VoidReason:          doc.VoidReason,
		FiscalStatus:        doc.FiscalStatus,
		FiscalError:         doc.FiscalError,
		FiscalAttempts:      doc.FiscalAttempts,
		ReferenceDocumentID: doc.ReferenceDocumentID,
		ReferenceIUD:        doc.ReferenceIUD,
		Reason:              doc.Reason,
		CreatedAt:           doc.CreatedAt,
		UpdatedAt:           doc.UpdatedAt,
	}
	if !doc.Date.IsZero() {
		resp.Date = doc.Date.Format(dateLayout)
	}
	if doc.DueDate != nil {
		resp.DueDate = doc.DueDate.Format(dateLayout)
	}
	for _, it := range doc.Items {
		resp.Items = append(resp.Items, dto.LineItemResponse{
			Description: it.Description,
			Code:        it.Code,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			TaxRate:     it.TaxRate,
			Total:       it.Total,
		})
	}
	return resp
}

func toTransmissionStatus(doc *entity.Document) *dto.TransmissionStatusDTO {
	return &dto.TransmissionStatusDTO{
		ID:             doc.ID,
		FiscalStatus:   doc.FiscalStatus,
		FiscalAttempts: doc.FiscalAttempts,
		FiscalError:    doc.FiscalError,
	}
}
