package models

// Product позиция каталога услуг.
type Product struct {
	ID    string `yaml:"id" json:"id"`
	Name  string `yaml:"name" json:"name"`
	Price int64  `yaml:"price" json:"price"`
	Bulk  bool   `yaml:"bulk" json:"bulk"`
}

// Catalog упорядоченный список услуг, порядок задаёт порядок кнопок.
type Catalog []Product

func (c Catalog) Find(id string) (Product, bool) {
	for _, p := range c {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}

// Price возвращает цену услуги или 0, если её нет в каталоге.
func (c Catalog) Price(id string) int64 {
	p, _ := c.Find(id)
	return p.Price
}

// Name возвращает название услуги, для неизвестных - сам идентификатор.
func (c Catalog) Name(id string) string {
	if p, ok := c.Find(id); ok {
		return p.Name
	}
	return id
}
