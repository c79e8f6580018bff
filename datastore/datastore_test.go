package datastore_test

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/eoarchive/data-access/common"
	"github.com/eoarchive/data-access/datastore"
	"github.com/eoarchive/data-access/interface/catalog"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("DataStore", func() {
	var err error
	var putIdentifier string
	sevilleRegion := "POLYGON((-7 36.5, -5 36.5, -5 38.5, -7 38.5, -7 36.5))"

	It("starts with an empty catalog", func() {
		records, err := store.All(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(BeEmpty())
		Expect(store.Writable()).To(BeTrue())
	})

	Describe("Updating from the archive", func() {
		It("registers every data set of the archive", func() {
			report, err := store.Update(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(len(report.Added)).To(Equal(2))
			Expect(report.Removed).To(BeEmpty())
			Expect(report.Faults).To(BeEmpty())

			starts := []string{report.Added[0].StartTime, report.Added[1].StartTime}
			Expect(starts).To(ContainElement("2017-09-04 11:18:25"))
			Expect(starts).To(ContainElement("2016-11-22 10:03:36"))
			for _, info := range report.Added {
				Expect(info.DataType).To(Equal(common.TypeAwsS2L1C))
				Expect(strings.HasPrefix(info.Identifier, archiveRoot)).To(BeTrue())
				Expect(info.IsGlobal()).To(BeFalse())
			}
		})

		It("reports nothing on a second run", func() {
			report, err := store.Update(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Added).To(BeEmpty())
			Expect(report.Removed).To(BeEmpty())
			Expect(report.Faults).To(BeEmpty())
		})
	})

	Describe("Querying the catalog", func() {
		It("answers data type queries", func() {
			records, err := store.Query(ctx, catalog.Query{DataType: common.TypeAwsS2L1C})
			Expect(err).NotTo(HaveOccurred())
			Expect(len(records)).To(Equal(2))

			records, err = store.Query(ctx, catalog.Query{DataType: common.TypeCams})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(BeEmpty())
		})

		It("answers time window queries", func() {
			start := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)
			records, err := store.Query(ctx, catalog.Query{DataType: common.TypeAwsS2L1C, Start: &start})
			Expect(err).NotTo(HaveOccurred())
			Expect(len(records)).To(Equal(1))
			Expect(records[0].StartTime).To(Equal("2017-09-04 11:18:25"))
		})

		It("answers region queries", func() {
			records, err := store.Query(ctx, catalog.Query{DataType: common.TypeAwsS2L1C, RegionWKT: sevilleRegion})
			Expect(err).NotTo(HaveOccurred())
			Expect(len(records)).To(Equal(1))
			Expect(records[0].StartTime).To(Equal("2017-09-04 11:18:25"))
		})

		It("merges the coverage of the matching records", func() {
			coverage, err := store.Coverage(ctx, catalog.Query{DataType: common.TypeAwsS2L1C})
			Expect(err).NotTo(HaveOccurred())
			Expect(coverage).To(ContainSubstring("POLYGON"))

			coverage, err = store.Coverage(ctx, catalog.Query{DataType: common.TypeCams})
			Expect(err).NotTo(HaveOccurred())
			Expect(coverage).To(Equal(""))
		})
	})

	Describe("Resolving records to files", func() {
		It("resolves every record of the archive", func() {
			resolutions, err := store.QueryAndResolve(ctx, catalog.Query{DataType: common.TypeAwsS2L1C})
			Expect(err).NotTo(HaveOccurred())
			Expect(len(resolutions)).To(Equal(2))
			for _, resolution := range resolutions {
				Expect(resolution.Error).To(Equal(""))
				Expect(resolution.FileRef).NotTo(BeNil())
				Expect(resolution.FileRef.URL).To(Equal(resolution.Identifier))
			}
		})
	})

	Describe("Ingesting with put", func() {
		It("copies the data set into the archive and registers it", func() {
			source := writeTile(filepath.Join(workDir, "incoming"), "30/T/XQ/2018/1/1/0", "2018-01-01T10:00:00.000Z", "EPSG:32630", 199980, 4400040)
			info, err := store.Put(ctx, source)
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Identifier).To(Equal(filepath.Join(archiveRoot, "30/T/XQ/2018/1/1/0")))
			Expect(info.StartTime).To(Equal("2018-01-01 10:00:00"))
			putIdentifier = info.Identifier

			registered, err := store.Get(ctx, putIdentifier)
			Expect(err).NotTo(HaveOccurred())
			Expect(registered).To(Equal(info))
			records, err := store.All(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(len(records)).To(Equal(3))

			// the archive copy resolves like any other record
			resolutions, err := store.QueryAndResolve(ctx, catalog.Query{DataType: common.TypeAwsS2L1C})
			Expect(err).NotTo(HaveOccurred())
			resolved := false
			for _, resolution := range resolutions {
				if resolution.Identifier == putIdentifier {
					resolved = true
					Expect(resolution.Error).To(Equal(""))
					Expect(resolution.FileRef.URL).To(Equal(putIdentifier))
				}
			}
			Expect(resolved).To(BeTrue())
			_, err = os.Stat(filepath.Join(putIdentifier, "metadata.xml"))
			Expect(err).NotTo(HaveOccurred())

			// the source stays where it was
			_, err = os.Stat(filepath.Join(source, "metadata.xml"))
			Expect(err).NotTo(HaveOccurred())
		})

		It("removes the ingested data set and its record", func() {
			err = store.Remove(ctx, putIdentifier)
			Expect(err).NotTo(HaveOccurred())
			_, err = os.Stat(putIdentifier)
			Expect(os.IsNotExist(err)).To(BeTrue())
			_, err = store.Get(ctx, putIdentifier)
			Expect(err).To(Equal(catalog.ErrNotFound{Type: "data set", ID: putIdentifier}))
		})
	})

	Describe("Resolving a record whose data set is gone", func() {
		It("reports the one failure and resolves the others", func() {
			source := writeTile(filepath.Join(workDir, "incoming"), "30/T/XQ/2018/1/1/0", "2018-01-01T10:00:00.000Z", "EPSG:32630", 199980, 4400040)
			info, err := store.Put(ctx, source)
			Expect(err).NotTo(HaveOccurred())
			Expect(os.RemoveAll(info.Identifier)).NotTo(HaveOccurred())

			resolutions, err := store.QueryAndResolve(ctx, catalog.Query{DataType: common.TypeAwsS2L1C})
			Expect(err).NotTo(HaveOccurred())
			Expect(len(resolutions)).To(Equal(3))
			failed := 0
			for _, resolution := range resolutions {
				if resolution.Identifier == info.Identifier {
					failed++
					Expect(resolution.Error).NotTo(Equal(""))
					Expect(resolution.FileRef).To(BeNil())
				} else {
					Expect(resolution.Error).To(Equal(""))
					Expect(resolution.FileRef).NotTo(BeNil())
				}
			}
			Expect(failed).To(Equal(1))
		})

		It("still removes the record", func() {
			err = store.Remove(ctx, putIdentifier)
			Expect(err).NotTo(HaveOccurred())
			_, err = store.Get(ctx, putIdentifier)
			Expect(err).To(Equal(catalog.ErrNotFound{Type: "data set", ID: putIdentifier}))
		})

		It("leaves nothing for update to reconcile", func() {
			report, err := store.Update(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Added).To(BeEmpty())
			Expect(report.Removed).To(BeEmpty())
		})
	})
})

var _ = Describe("Cached store", func() {
	It("fetches a data set once and serves later opens from the cache", func() {
		resolutions, err := cached.QueryAndResolve(ctx, catalog.Query{DataType: common.TypeAwsS2L1C})
		Expect(err).NotTo(HaveOccurred())
		Expect(len(resolutions)).To(Equal(1))
		Expect(resolutions[0].Error).To(Equal(""))
		Expect(resolutions[0].FileRef.URL).To(Equal(filepath.Join(cacheDir, remoteTileID)))
		_, err = os.Stat(filepath.Join(cacheDir, remoteTileID, "metadata.xml"))
		Expect(err).NotTo(HaveOccurred())
		Expect(moke.fetches).To(Equal(int32(1)))

		_, err = cached.QueryAndResolve(ctx, catalog.Query{DataType: common.TypeAwsS2L1C})
		Expect(err).NotTo(HaveOccurred())
		Expect(moke.fetches).To(Equal(int32(1)))
	})

	It("clears the cache without touching the remote or the catalog", func() {
		Expect(cached.ClearCache(ctx)).NotTo(HaveOccurred())
		_, err := os.Stat(filepath.Join(cacheDir, remoteTileID))
		Expect(os.IsNotExist(err)).To(BeTrue())

		records, err := cached.All(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(len(records)).To(Equal(1))

		resolutions, err := cached.QueryAndResolve(ctx, catalog.Query{DataType: common.TypeAwsS2L1C})
		Expect(err).NotTo(HaveOccurred())
		Expect(resolutions[0].Error).To(Equal(""))
		Expect(moke.fetches).To(Equal(int32(2)))
	})

	It("is read only", func() {
		Expect(cached.Writable()).To(BeFalse())
		_, err := cached.Put(ctx, workDir)
		Expect(err).To(Equal(datastore.ErrReadOnly{Store: "sentinel2_remote"}))
		err = cached.Remove(ctx, remoteTileID)
		Expect(err).To(Equal(datastore.ErrReadOnly{Store: "sentinel2_remote"}))
	})

	It("lists the remote identifiers", func() {
		identifiers, err := cached.RemoteIdentifiers(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(identifiers).To(Equal([]string{remoteTileID}))
	})
})
