package world

import (
	"survival.io/internal/protocol"
	"survival.io/internal/sim/catalogs"
)

type CraftResult struct {
	Success bool
	Message string
	Item    string
}

const msgNotEnoughResources = "Not enough resources"

// CanCraft reports whether the recipe exists and p holds every listed cost.
func CanCraft(p *Player, recipes catalogs.RecipeCatalog, recipeID string) bool {
	r, ok := recipes.ByID[recipeID]
	return ok && p.has(r.Cost)
}

// Craft deducts the recipe cost. Tools, weapons and armor are equipped at
// once, replacing the current item in that slot. Buildings only report the
// item id; placing one is a separate build action.
func Craft(p *Player, recipes catalogs.RecipeCatalog, recipeID string) CraftResult {
	if !CanCraft(p, recipes, recipeID) {
		return CraftResult{Message: msgNotEnoughResources}
	}
	r := recipes.ByID[recipeID]
	p.pay(r.Cost)
	if r.Category == catalogs.CategoryBuilding {
		return CraftResult{Success: true, Message: "Crafted " + r.Name, Item: recipeID}
	}
	p.equip(r.Category, recipeID)
	return CraftResult{Success: true, Message: "Crafted and equipped " + r.Name}
}

func (w *World) handleCraft(p *Player, recipeID string) {
	res := Craft(p, w.catalogs.Recipes, recipeID)
	if res.Success {
		w.emit(EventCraft, p.ID, "", map[string]any{"recipe": recipeID})
	}
	w.sendTo(p.ID, protocol.CraftResultMsg{
		Type:    protocol.TypeCraftResult,
		Success: res.Success,
		Message: res.Message,
		Item:    res.Item,
	})
}

func (w *World) recipeViews() map[string]protocol.RecipeView {
	out := make(map[string]protocol.RecipeView, len(w.catalogs.Recipes.ByID))
	for id, r := range w.catalogs.Recipes.ByID {
		cost := make(map[string]int, len(r.Cost))
		for k, v := range r.Cost {
			cost[k] = v
		}
		out[id] = protocol.RecipeView{Name: r.Name, Cost: cost, Category: r.Category}
	}
	return out
}
