package catalog

import (
	"github.com/sells-group/inspection-match/internal/model"
)

var defaultServices = []model.Service{
	{ID: "1", Name: "Avaliação laudo simplificado", Order: 1},
	{ID: "2", Name: "Laudo completo", Order: 2},
	{ID: "3", Name: "Avaliação imóvel ou benfeitoria rural ou florestal", Order: 3},
	{ID: "4", Name: "Levantamento topográfico", Order: 4},
	{ID: "5", Name: "Georreferenciamento", Order: 5},
	{ID: "6", Name: "Vistoria de obra", Order: 6},
}

var defaultRegions = []model.Region{
	{ID: "1", Name: "CENTRAL"},
	{ID: "2", Name: "ZONA DA MATA"},
	{ID: "3", Name: "SUL DE MINAS"},
	{ID: "4", Name: "TRIANGULO"},
	{ID: "5", Name: "ALTO PARAIBA"},
	{ID: "6", Name: "CENTRO OESTE"},
	{ID: "7", Name: "NOROESTE DE MINAS"},
	{ID: "8", Name: "NORTE DE MINAS"},
	{ID: "9", Name: "JEQUITINHONHA/MUCURI"},
	{ID: "10", Name: "RIO DOCE"},
}

var defaultStates = []model.State{
	{ID: "1", Code: "AC", Name: "Acre"},
	{ID: "2", Code: "AL", Name: "Alagoas"},
	{ID: "3", Code: "AP", Name: "Amapá"},
	{ID: "4", Code: "AM", Name: "Amazonas"},
	{ID: "5", Code: "BA", Name: "Bahia"},
	{ID: "6", Code: "CE", Name: "Ceará"},
	{ID: "7", Code: "DF", Name: "Distrito Federal"},
	{ID: "8", Code: "ES", Name: "Espírito Santo"},
	{ID: "9", Code: "GO", Name: "Goiás"},
	{ID: "10", Code: "MA", Name: "Maranhão"},
	{ID: "11", Code: "MT", Name: "Mato Grosso"},
	{ID: "12", Code: "MS", Name: "Mato Grosso do Sul"},
	{ID: "13", Code: "MG", Name: "Minas Gerais"},
	{ID: "14", Code: "PA", Name: "Pará"},
	{ID: "15", Code: "PB", Name: "Paraíba"},
	{ID: "16", Code: "PR", Name: "Paraná"},
	{ID: "17", Code: "PE", Name: "Pernambuco"},
	{ID: "18", Code: "PI", Name: "Piauí"},
	{ID: "19", Code: "RJ", Name: "Rio de Janeiro"},
	{ID: "20", Code: "RN", Name: "Rio Grande do Norte"},
	{ID: "21", Code: "RS", Name: "Rio Grande do Sul"},
	{ID: "22", Code: "RO", Name: "Rondônia"},
	{ID: "23", Code: "RR", Name: "Roraima"},
	{ID: "24", Code: "SC", Name: "Santa Catarina"},
	{ID: "25", Code: "SP", Name: "São Paulo"},
	{ID: "26", Code: "SE", Name: "Sergipe"},
	{ID: "27", Code: "TO", Name: "Tocantins"},
}

// DefaultServices returns the bundled service list.
func DefaultServices() []model.Service { return append([]model.Service(nil), defaultServices...) }

// DefaultRegions returns the bundled Minas Gerais regions.
func DefaultRegions() []model.Region { return append([]model.Region(nil), defaultRegions...) }

// DefaultStates returns the 27 federative units.
func DefaultStates() []model.State { return append([]model.State(nil), defaultStates...) }
