package pdf

import (
	"context"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

type SlipProvider struct{}

func New() Provider {
	return &SlipProvider{}
}

func (p *SlipProvider) GenerateSlip(ctx context.Context, data SlipData) ([]byte, error) {
	cfg := config.NewBuilder().Build()
	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(3, data.BancoNome+" | "+data.BankCode, props.Text{
			Size:  14,
			Style: fontstyle.Bold,
		}),
		text.NewCol(9, data.LinhaDigitavel, props.Text{
			Size:  11,
			Style: fontstyle.Bold,
			Align: align.Right,
		}),
	)

	m.AddRow(18,
		col.New(6).Add(
			text.New("Beneficiario", props.Text{Size: 7}),
			text.New(data.Beneficiario, props.Text{Top: 4, Size: 10}),
		),
		col.New(3).Add(
			text.New("Nosso numero", props.Text{Size: 7}),
			text.New(data.NossoNumero, props.Text{Top: 4, Size: 10}),
		),
		col.New(3).Add(
			text.New("Numero do documento", props.Text{Size: 7}),
			text.New(data.NumeroDocumento, props.Text{Top: 4, Size: 10}),
		),
	)

	m.AddRow(18,
		col.New(6).Add(
			text.New("Pagador", props.Text{Size: 7}),
			text.New(data.PagadorNome, props.Text{Top: 4, Size: 10}),
			text.New(data.PagadorDocumento, props.Text{Top: 9, Size: 9}),
		),
		col.New(3).Add(
			text.New("Vencimento", props.Text{Size: 7}),
			text.New(data.Vencimento, props.Text{Top: 4, Size: 10, Style: fontstyle.Bold}),
		),
		col.New(3).Add(
			text.New("Valor do documento", props.Text{Size: 7}),
			text.New(data.Valor, props.Text{Top: 4, Size: 10, Style: fontstyle.Bold}),
		),
	)

	if data.CodigoBarras != "" {
		m.AddRow(20,
			code.NewBarCol(12, data.CodigoBarras, props.Barcode{
				Percent: 100,
			}),
		)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}
